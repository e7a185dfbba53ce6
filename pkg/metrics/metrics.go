// Package metrics defines the Prometheus collectors used by the proximity
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	NetworkRequestsTotal *prometheus.CounterVec
	NetworkLatency       *prometheus.HistogramVec
	UnitsProcessedTotal  *prometheus.CounterVec
	NeighboursReturned   prometheus.Histogram
	RetrievalErrorsTotal *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
	LibraryDocuments     prometheus.Gauge
	AnalyticsEventsTotal *prometheus.CounterVec
}

// New creates all collectors and registers them on reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		NetworkRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_network_requests_total",
				Help: "Network computations by outcome (ok, empty, invalid, not_found, retrieval_error, error).",
			},
			[]string{"outcome"},
		),
		NetworkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proximity_network_latency_seconds",
				Help:    "End-to-end network computation latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"cache_status"},
		),
		UnitsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_units_processed_total",
				Help: "Text units run through the pipeline, by status (matched, skipped).",
			},
			[]string{"status"},
		),
		NeighboursReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proximity_neighbours_returned",
				Help:    "Number of neighbour terms returned per network.",
				Buckets: []float64{0, 1, 5, 10, 15, 25, 50},
			},
		),
		RetrievalErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_retrieval_errors_total",
				Help: "Document retrieval failures by reason.",
			},
			[]string{"reason"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of response cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of response cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		LibraryDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "library_documents",
				Help: "Number of documents in the local library.",
			},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Analytics events by status (published, failed, dropped, consumed).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.NetworkRequestsTotal,
		m.NetworkLatency,
		m.UnitsProcessedTotal,
		m.NeighboursReturned,
		m.RetrievalErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
		m.LibraryDocuments,
		m.AnalyticsEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
