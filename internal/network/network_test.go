package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

var iotDocs = []retrieval.Document{
	{ID: "d1", Title: "iot network", Abstract: "iot <i>sensor</i> network"},
}

func testProximityConfig() config.ProximityConfig {
	cfg := config.Default().Proximity
	cfg.WeightMode = "none"
	cfg.SummarizeMode = "none"
	cfg.LimitDistance = 4
	cfg.TopN = 15
	return cfg
}

func staticRetriever(docs []retrieval.Document, calls *atomic.Int32) retrieval.Retriever {
	return retrieval.RetrieverFunc(func(ctx context.Context, q string, max int) ([]retrieval.Document, error) {
		if calls != nil {
			calls.Add(1)
		}
		return docs, nil
	})
}

func failingRetriever(err error) retrieval.Retriever {
	return retrieval.RetrieverFunc(func(ctx context.Context, q string, max int) ([]retrieval.Document, error) {
		return nil, err
	})
}

func newService(t *testing.T, r retrieval.Retriever, cfg config.ProximityConfig, opts ...Option) *Service {
	t.Helper()
	n, err := textproc.New(textproc.Options{})
	require.NoError(t, err)
	s, err := NewService(r, n, cfg, opts...)
	require.NoError(t, err)
	return s
}

func serve(s *Service, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	NewHandler(s).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestNeighbourTermsEndpoint(t *testing.T) {
	s := newService(t, staticRetriever(iotDocs, nil), testProximityConfig())

	rec := serve(s, "/get-neighbour-terms", `{"query":"IoT"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NeighbourTermsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []NeighbourTerm{
		{Term: "network", Frequency: 2, Distance: 1.5},
		{Term: "sensor", Frequency: 1, Distance: 1},
	}, resp.NeighbourTerms)
}

func TestNetworkEndpoint(t *testing.T) {
	s := newService(t, staticRetriever(iotDocs, nil), testProximityConfig())

	rec := serve(s, "/api/v1/network", `{"query":"iot"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var n Network
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, "iot", n.Reference)
	assert.Equal(t, 1, n.Documents)
	assert.Equal(t, 2, n.Units)
	assert.Equal(t, 2, n.Matched)
	assert.Equal(t, 0, n.Skipped)
	require.Len(t, n.Neighbours, 2)
	assert.Equal(t, Neighbour{Term: "network", Frequency: 2, Distance: 1.5, NodeSize: 3, EdgeWidth: 5}, n.Neighbours[0])
	assert.Equal(t, Neighbour{Term: "sensor", Frequency: 1, Distance: 1, NodeSize: 1, EdgeWidth: 1}, n.Neighbours[1])
	assert.Empty(t, n.PerUnit)
}

func TestExplicitReferenceTerm(t *testing.T) {
	s := newService(t, staticRetriever(iotDocs, nil), testProximityConfig())

	n, err := s.Compute(context.Background(), Request{Query: "iot", ReferenceTerm: " Sensor "})
	require.NoError(t, err)
	assert.Equal(t, "sensor", n.Reference)
	assert.Equal(t, 1, n.Skipped)
	require.Len(t, n.Neighbours, 2)
	assert.Equal(t, "iot", n.Neighbours[0].Term)
	assert.Equal(t, "network", n.Neighbours[1].Term)
}

func TestReferenceDefaultsToLastQueryToken(t *testing.T) {
	s := newService(t, staticRetriever(iotDocs, nil), testProximityConfig())

	ref, err := s.Reference(Request{Query: "wireless <b>Network</b>"})
	require.NoError(t, err)
	assert.Equal(t, "network", ref)
}

func TestPerUnitSummaries(t *testing.T) {
	cfg := testProximityConfig()
	cfg.SummarizeMode = "mean"
	s := newService(t, staticRetriever(iotDocs, nil), cfg)

	n, err := s.Compute(context.Background(), Request{Query: "iot"})
	require.NoError(t, err)
	require.Len(t, n.PerUnit, 2)
	assert.Equal(t, []string{"sensor", "network"}, n.PerUnit[1].Terms)
	assert.Equal(t, 2.0, n.PerUnit[1].Values["network"])
	assert.Equal(t, "mean", n.Mode)
}

func TestEmptyNetworkIsOK(t *testing.T) {
	s := newService(t, staticRetriever(iotDocs, nil), testProximityConfig())

	rec := serve(s, "/get-neighbour-terms", `{"query":"iot","reference_term":"quantum"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"neighbour_terms":[]}`, rec.Body.String())
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		retriever retrieval.Retriever
		body      string
		status    int
	}{
		{"invalid json", staticRetriever(iotDocs, nil), `{`, http.StatusBadRequest},
		{"empty query", staticRetriever(iotDocs, nil), `{"query":"  "}`, http.StatusBadRequest},
		{"reference normalizes to nothing", staticRetriever(iotDocs, nil), `{"query":"iot","reference_term":"!!"}`, http.StatusBadRequest},
		{"no results", failingRetriever(&retrieval.Error{Source: "library", Err: retrieval.ErrNoResults}), `{"query":"iot"}`, http.StatusNotFound},
		{"no text", staticRetriever([]retrieval.Document{{ID: "x", Title: "..."}}, nil), `{"query":"iot"}`, http.StatusNotFound},
		{"upstream failure", failingRetriever(&retrieval.Error{Source: "library", Err: errors.New("boom")}), `{"query":"iot"}`, http.StatusBadGateway},
		{"unexpected failure", failingRetriever(errors.New("boom")), `{"query":"iot"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, tt.retriever, testProximityConfig())
			rec := serve(s, "/get-neighbour-terms", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestNewServiceRejectsUnknownModes(t *testing.T) {
	n, err := textproc.New(textproc.Options{})
	require.NoError(t, err)

	cfg := testProximityConfig()
	cfg.WeightMode = "quadratic"
	_, err = NewService(staticRetriever(nil, nil), n, cfg)
	assert.Error(t, err)

	cfg = testProximityConfig()
	cfg.SummarizeMode = "mode"
	_, err = NewService(staticRetriever(nil, nil), n, cfg)
	assert.Error(t, err)
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.NetworkEvent
}

func (r *recordingTracker) Track(_ string, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.(analytics.NetworkEvent))
}

func TestCachedComputation(t *testing.T) {
	var calls atomic.Int32
	m := metrics.New(prometheus.NewRegistry())
	cache := NewRedisCache(newMemKV(), time.Minute, m)
	tracker := &recordingTracker{}
	s := newService(t, staticRetriever(iotDocs, &calls), testProximityConfig(),
		WithCache(cache), WithMetrics(m), WithTracker(tracker))

	first := serve(s, "/get-neighbour-terms", `{"query":"iot"}`)
	second := serve(s, "/get-neighbour-terms", `{"query":"  iot "}`)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NetworkRequestsTotal.WithLabelValues("ok")))

	require.Len(t, tracker.events, 2)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[1].CacheHit)
	assert.Equal(t, analytics.EventNetwork, tracker.events[1].Type)
	assert.Equal(t, []string{"network", "sensor"}, tracker.events[1].Neighbours)

	mux := http.NewServeMux()
	NewHandler(s).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Contains(t, rec.Body.String(), `"hit_rate":"50.0%"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)

	serve(s, "/get-neighbour-terms", `{"query":"iot"}`)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheKeyDependsOnReferenceAndParams(t *testing.T) {
	assert.Equal(t, cacheKey("iot  sensor", "sensor", "p"), cacheKey(" iot sensor", "sensor", "p"))
	assert.NotEqual(t, cacheKey("iot", "iot", "p"), cacheKey("iot", "sensor", "p"))
	assert.NotEqual(t, cacheKey("iot", "iot", "p"), cacheKey("iot", "iot", "q"))
	assert.True(t, strings.HasPrefix(cacheKey("iot", "iot", "p"), keyPrefix))
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	s := newService(t, staticRetriever(iotDocs, nil), testProximityConfig())
	mux := http.NewServeMux()
	NewHandler(s).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFailureEventsAndMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	tracker := &recordingTracker{}
	s := newService(t, failingRetriever(&retrieval.Error{Source: "library", Err: retrieval.ErrNoResults}),
		testProximityConfig(), WithMetrics(m), WithTracker(tracker))

	_, err := s.Compute(context.Background(), Request{Query: "iot"})
	require.Error(t, err)
	assert.Equal(t, "not_found", Outcome(nil, err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NetworkRequestsTotal.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalErrorsTotal.WithLabelValues("no_results")))
	require.Len(t, tracker.events, 1)
	assert.Equal(t, analytics.EventNetworkFailed, tracker.events[0].Type)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(&Network{Neighbours: []Neighbour{{Term: "a"}}}, nil))
	assert.Equal(t, "empty", Outcome(&Network{Neighbours: []Neighbour{}}, nil))
	assert.Equal(t, "retrieval_error", Outcome(nil, &retrieval.Error{Err: errors.New("x")}))
	assert.Equal(t, "error", Outcome(nil, errors.New("x")))
}
