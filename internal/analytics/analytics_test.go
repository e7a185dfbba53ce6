package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

func newAggregator(maxLatencies int) *Aggregator {
	return NewAggregator(config.AnalyticsConfig{MaxLatencies: maxLatencies, TopK: 2}, nil)
}

func TestAggregatorStats(t *testing.T) {
	agg := newAggregator(100)
	agg.RecordNetwork(NetworkEvent{Type: EventNetwork, Query: "iot", Reference: "iot", Neighbours: []string{"sensor", "network"}, LatencyMs: 10})
	agg.RecordNetwork(NetworkEvent{Type: EventNetwork, Query: "iot", Reference: "iot", Neighbours: []string{"sensor"}, LatencyMs: 30, CacheHit: true})
	agg.RecordNetwork(NetworkEvent{Type: EventNetworkEmpty, Query: "quark", Reference: "quark", LatencyMs: 20})
	agg.RecordNetwork(NetworkEvent{Type: EventNetworkFailed, Query: "graph", Reference: "graph", LatencyMs: 40})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.EmptyNetworks)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.InDelta(t, 0.25, stats.CacheHitRate, 1e-9)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(20), stats.P50LatencyMs)
	assert.Equal(t, int64(40), stats.P95LatencyMs)
	assert.Equal(t, int64(40), stats.P99LatencyMs)
	assert.Equal(t, []TermCount{{"iot", 2}, {"graph", 1}}, stats.TopQueries)
	assert.Equal(t, []TermCount{{"sensor", 2}, {"network", 1}}, stats.TopNeighbours)
	assert.Equal(t, []TermCount{{"quark", 1}}, stats.EmptyQueries)
}

func TestAggregatorLatencyRing(t *testing.T) {
	agg := newAggregator(3)
	for _, l := range []int64{100, 100, 100, 1, 2, 3} {
		agg.RecordNetwork(NetworkEvent{Type: EventNetwork, LatencyMs: l})
	}
	stats := agg.Stats()
	assert.InDelta(t, 2.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(6), stats.TotalRequests)
}

func TestHandleEventDispatchesByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	agg := NewAggregator(config.AnalyticsConfig{}, m)
	handle := HandleEvent(agg)
	ctx := context.Background()

	network, _ := json.Marshal(NetworkEvent{Type: EventNetwork, Query: "iot"})
	doc, _ := json.Marshal(DocumentEvent{Type: EventDocumentAdded, DocumentID: "d1"})
	require.NoError(t, handle(ctx, nil, network))
	require.NoError(t, handle(ctx, nil, doc))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"unknown"}`)))
	require.NoError(t, handle(ctx, nil, []byte(`not json`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.DocumentsAdded)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("consumed")))
}

func TestAggregatorPublisher(t *testing.T) {
	agg := newAggregator(10)
	pub := agg.Publisher()
	require.NoError(t, pub.Publish(context.Background(), kafka.Event{Key: "k", Value: NetworkEvent{Type: EventNetwork, Query: "iot"}}))
	assert.Equal(t, int64(1), agg.Stats().TotalRequests)
	assert.NoError(t, pub.Close())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestCollectorPublishesAndDrains(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 16, m)
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Track("network", NetworkEvent{Type: EventNetwork})
	}
	require.NoError(t, c.Publish(context.Background(), kafka.Event{Key: "d1", Value: DocumentEvent{Type: EventDocumentAdded}}))
	require.NoError(t, c.Close())

	assert.Equal(t, 6, pub.len())
	assert.Equal(t, 6.0, testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("published")))

	c.Track("network", NetworkEvent{})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("dropped")))
	assert.NoError(t, c.Close())
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 1, m)

	c.Track("a", NetworkEvent{})
	c.Track("b", NetworkEvent{})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("dropped")))

	c.Start(context.Background())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, pub.len())
}

func TestCollectorCountsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 4, m)
	c.Start(context.Background())
	c.Track("a", NetworkEvent{})
	require.NoError(t, c.Close())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("failed")))
}

type fakeLister struct {
	snaps []AggregatedStats
	err   error
	limit int
}

func (f *fakeLister) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return f.snaps, f.err
}

func TestHandler(t *testing.T) {
	agg := newAggregator(10)
	agg.RecordNetwork(NetworkEvent{Type: EventNetwork, Query: "iot"})
	lister := &fakeLister{snaps: []AggregatedStats{{TotalRequests: 7, CapturedAt: time.Unix(0, 0).UTC()}}}
	mux := http.NewServeMux()
	NewHandler(agg, lister).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalRequests)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, lister.limit)
	assert.Contains(t, rec.Body.String(), `"total_requests":7`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSnapshotsDisabled(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(newAggregator(10), nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
