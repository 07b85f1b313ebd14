package rag

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Fan-out execution defaults.
const (
	// defaultQueryTimeout is the per-query deadline for a single document
	// store search during fan-out.
	defaultQueryTimeout = 5 * time.Second

	// maxFanOutWorkers bounds the number of concurrent store searches.
	// The primary path issues at most 3 queries, one worker each; derived
	// operations with longer query lists share the same bound.
	maxFanOutWorkers = 3
)

// querySpec describes one independent fan-out query.
type querySpec struct {
	// query is the free-text search string.
	query string

	// filter is the metadata scope applied to the search.
	filter SearchFilter

	// topK is the number of candidate chunks requested.
	topK int
}

// fanOutEngine runs independent document store queries concurrently with a
// bounded worker pool and per-query timeouts. Failed or timed-out queries are
// logged and dropped; the engine never fails a call outright.
type fanOutEngine struct {
	// store is the document store queried by every worker.
	store DocumentStore

	// timeout is the per-query deadline.
	timeout time.Duration

	// log records dropped queries.
	log *slog.Logger

	// metrics counts query outcomes and latency. Never nil.
	metrics *ragMetrics
}

// newFanOutEngine constructs a fanOutEngine, applying the default timeout for
// non-positive values.
func newFanOutEngine(store DocumentStore, timeout time.Duration, log *slog.Logger, m *ragMetrics) *fanOutEngine {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &fanOutEngine{store: store, timeout: timeout, log: log, metrics: m}
}

// run executes all queries concurrently and returns one chunk list per query,
// indexed like the input. A query that errors or times out yields a nil slot.
// run blocks until every dispatched query has completed or hit its deadline;
// a slow query never cancels its siblings.
func (e *fanOutEngine) run(ctx context.Context, queries []querySpec) [][]ResourceChunk {
	results := make([][]ResourceChunk, len(queries))
	if len(queries) == 0 {
		return results
	}

	sem := make(chan struct{}, maxFanOutWorkers)
	done := make(chan int, len(queries))

	for i, q := range queries {
		go func(slot int, q querySpec) {
			defer func() { done <- slot }()

			sem <- struct{}{}
			defer func() { <-sem }()

			queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			start := time.Now()
			chunks, err := e.store.Search(queryCtx, q.query, q.filter, q.topK)
			e.metrics.observeQuery(time.Since(start), err)

			if err != nil {
				// Partial results beat none: drop this query, keep the rest.
				e.log.Warn("rag: fan-out query dropped",
					slog.String("query", q.query),
					slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
					slog.Any("error", err),
				)
				return
			}
			results[slot] = chunks
		}(i, q)
	}

	for range queries {
		<-done
	}
	return results
}

// mergeChunks concatenates per-query chunk lists in query order, so the merged
// stream is deterministic regardless of which query finished first.
func mergeChunks(results [][]ResourceChunk) []ResourceChunk {
	var merged []ResourceChunk
	for _, chunks := range results {
		merged = append(merged, chunks...)
	}
	return merged
}
