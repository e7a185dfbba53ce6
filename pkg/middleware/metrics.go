// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, CORS and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

// Metrics records request count, latency and the in-flight gauge. Paths not
// listed in known are reported as "other" to bound label cardinality.
func Metrics(m *metrics.Metrics, known ...string) func(http.Handler) http.Handler {
	routes := make(map[string]bool, len(known))
	for _, k := range known {
		routes[k] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := normalizePath(r.URL.Path, routes)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

func normalizePath(path string, routes map[string]bool) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	if len(routes) == 0 || routes[path] {
		return path
	}
	return "other"
}
