// Package server, metrics.go: registers all Prometheus metrics for the HTTP
// server and exposes the per-handler instrumentation middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// planRequestsTotal counts completed /api/improvement-plan requests,
	// partitioned by outcome: "pregenerated", "generated", or "error".
	planRequestsTotal *prometheus.CounterVec

	// planDurationSeconds records the wall-clock duration of each
	// /api/improvement-plan request, partitioned the same way.
	planDurationSeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default, which keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		planRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uxlens",
			Subsystem: "plan",
			Name:      "requests_total",
			Help:      "Total number of improvement plan requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		planDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uxlens",
			Subsystem: "plan",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of improvement plan requests.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uxlens",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uxlens",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps a handler so its requests are counted and timed under the
// given logical name.
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	}
}
