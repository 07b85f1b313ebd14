package rag

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ragMetrics holds all Prometheus metrics owned by the retrieval subsystem.
// A single instance is created per Retriever so tests can inject a fresh
// prometheus.Registry without polluting the default one.
type ragMetrics struct {
	// cacheHits counts retrieval calls answered from the result cache.
	cacheHits prometheus.Counter

	// cacheMisses counts retrieval calls that triggered a fan-out.
	cacheMisses prometheus.Counter

	// queriesTotal counts fan-out document store queries by outcome:
	// "ok", "timeout", or "error".
	queriesTotal *prometheus.CounterVec

	// queryDurationSeconds records per-query document store latency.
	queryDurationSeconds prometheus.Histogram
}

// newRagMetrics registers all retrieval metrics against reg and returns the
// populated ragMetrics. promauto.With(reg) keeps unit tests hermetic.
func newRagMetrics(reg prometheus.Registerer) *ragMetrics {
	factory := promauto.With(reg)

	return &ragMetrics{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "uxlens",
			Subsystem: "rag",
			Name:      "cache_hits_total",
			Help:      "Total retrieval calls served from the result cache.",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "uxlens",
			Subsystem: "rag",
			Name:      "cache_misses_total",
			Help:      "Total retrieval calls that recomputed via fan-out.",
		}),

		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uxlens",
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Total fan-out document store queries, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uxlens",
			Subsystem: "rag",
			Name:      "query_duration_seconds",
			Help:      "Latency of individual fan-out document store queries.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// observeQuery records one fan-out query completion.
func (m *ragMetrics) observeQuery(elapsed time.Duration, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDurationSeconds.Observe(elapsed.Seconds())
}
