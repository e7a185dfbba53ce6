package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

type AggregatedStats struct {
	TotalRequests     int64       `json:"total_requests"`
	FailedRequests    int64       `json:"failed_requests"`
	EmptyNetworks     int64       `json:"empty_networks"`
	DocumentsAdded    int64       `json:"documents_added"`
	CacheHits         int64       `json:"cache_hits"`
	CacheMisses       int64       `json:"cache_misses"`
	CacheHitRate      float64     `json:"cache_hit_rate"`
	AvgLatencyMs      float64     `json:"avg_latency_ms"`
	P50LatencyMs      int64       `json:"p50_latency_ms"`
	P95LatencyMs      int64       `json:"p95_latency_ms"`
	P99LatencyMs      int64       `json:"p99_latency_ms"`
	TopQueries        []TermCount `json:"top_queries"`
	TopReferences     []TermCount `json:"top_references"`
	TopNeighbours     []TermCount `json:"top_neighbours"`
	EmptyQueries      []TermCount `json:"empty_queries"`
	RequestsPerMinute float64     `json:"requests_per_minute"`
	CapturedAt        time.Time   `json:"captured_at"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into in-memory statistics. Latencies are
// kept in a ring of the most recent MaxLatencies samples.
type Aggregator struct {
	mu             sync.RWMutex
	totalRequests  atomic.Int64
	failed         atomic.Int64
	empty          atomic.Int64
	documentsAdded atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	latencies      []int64
	next           int
	queryCounts    map[string]int64
	referenceCount map[string]int64
	neighbourCount map[string]int64
	emptyQueries   map[string]int64
	startTime      time.Time
	maxLatencies   int
	topK           int
	now            func() time.Time

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewAggregator(cfg config.AnalyticsConfig, m *metrics.Metrics) *Aggregator {
	maxLatencies := cfg.MaxLatencies
	if maxLatencies <= 0 {
		maxLatencies = 10000
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	return &Aggregator{
		latencies:      make([]int64, 0, min(maxLatencies, 1024)),
		queryCounts:    make(map[string]int64),
		referenceCount: make(map[string]int64),
		neighbourCount: make(map[string]int64),
		emptyQueries:   make(map[string]int64),
		startTime:      time.Now(),
		maxLatencies:   maxLatencies,
		topK:           topK,
		now:            time.Now,
		metrics:        m,
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes a message by its type field and records it. Malformed
// messages are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventNetwork, EventNetworkEmpty, EventNetworkFailed:
			event, err := kafka.DecodeJSON[NetworkEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode network event", "error", err)
				return nil
			}
			agg.RecordNetwork(event)
		case EventDocumentAdded:
			agg.documentsAdded.Add(1)
		default:
			agg.logger.Debug("ignoring analytics event", "type", env.Type)
			return nil
		}
		if agg.metrics != nil {
			agg.metrics.AnalyticsEventsTotal.WithLabelValues("consumed").Inc()
		}
		return nil
	}
}

// Publisher returns a kafka.Publisher that feeds events straight into the
// aggregator, for running without a broker.
func (a *Aggregator) Publisher() kafka.Publisher {
	return &localPublisher{handle: HandleEvent(a)}
}

type localPublisher struct {
	handle kafka.MessageHandler
}

func (p *localPublisher) Publish(ctx context.Context, event kafka.Event) error {
	data, err := json.Marshal(event.Value)
	if err != nil {
		return err
	}
	return p.handle(ctx, []byte(event.Key), data)
}

func (p *localPublisher) Close() error { return nil }

func (a *Aggregator) RecordNetwork(event NetworkEvent) {
	a.totalRequests.Add(1)
	if event.Type == EventNetworkFailed {
		a.failed.Add(1)
	}
	if event.Type == EventNetworkEmpty {
		a.empty.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < a.maxLatencies {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % a.maxLatencies
	}
	if event.Query != "" {
		a.queryCounts[event.Query]++
	}
	if event.Reference != "" {
		a.referenceCount[event.Reference]++
	}
	for _, n := range event.Neighbours {
		a.neighbourCount[n]++
	}
	if event.Type == EventNetworkEmpty {
		a.emptyQueries[event.Query]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRequests:  a.totalRequests.Load(),
		FailedRequests: a.failed.Load(),
		EmptyNetworks:  a.empty.Load(),
		DocumentsAdded: a.documentsAdded.Load(),
		CacheHits:      a.cacheHits.Load(),
		CacheMisses:    a.cacheMisses.Load(),
		CapturedAt:     a.now().UTC(),
	}
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(lookups)
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		for i, l := range a.latencies {
			sorted[i] = float64(l)
		}
		sort.Float64s(sorted)

		stats.AvgLatencyMs = stat.Mean(sorted, nil)
		stats.P50LatencyMs = percentile(sorted, 0.50)
		stats.P95LatencyMs = percentile(sorted, 0.95)
		stats.P99LatencyMs = percentile(sorted, 0.99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topK)
	stats.TopReferences = topN(a.referenceCount, a.topK)
	stats.TopNeighbours = topN(a.neighbourCount, a.topK)
	stats.EmptyQueries = topN(a.emptyQueries, a.topK)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}
	return stats
}

// percentile returns the empirical p-quantile of ascending latencies.
func percentile(sorted []float64, p float64) int64 {
	return int64(stat.Quantile(p, stat.Empirical, sorted, nil))
}

// topN orders by count, then term, so equal counts are stable across calls.
func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
