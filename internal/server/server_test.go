package server

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uxlens/uxlens-go/internal/rag"
)

// fakeStore is a scriptable DocumentStore double. The zero value serves one
// fixed chunk per query; tests override respond or statsErr as needed.
type fakeStore struct {
	mu       sync.Mutex
	queries  []string
	respond  func(query string, filter rag.SearchFilter, topK int) ([]rag.ResourceChunk, error)
	stats    rag.StoreStats
	statsErr error
}

func (f *fakeStore) Search(ctx context.Context, query string, filter rag.SearchFilter, topK int) ([]rag.ResourceChunk, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(query, filter, topK)
	}
	return []rag.ResourceChunk{{
		ChunkID:  "c-" + query,
		Content:  "content for " + query,
		Distance: 0.25,
		Metadata: rag.ResourceMetadata{
			ResourceID: "r-" + query,
			Title:      "Result for " + query,
			URL:        "https://example.com/r",
			Category:   "Visual Design",
		},
	}}, nil
}

func (f *fakeStore) ExistsByID(ctx context.Context, resourceID string) (bool, error) {
	return false, nil
}

func (f *fakeStore) Upsert(ctx context.Context, chunks []rag.ResourceChunk, embeddings [][]float32) error {
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, resourceID string) error { return nil }

func (f *fakeStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeStore) Close() error { return nil }

// newTestServer builds a Server over a fake store with hermetic metrics.
// Handlers are exercised directly; the HTTP listener is never started.
func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}

	log := slog.New(slog.DiscardHandler)
	reg := prometheus.NewRegistry()

	retriever, err := rag.NewRetriever(store, &rag.Config{
		Logger:     log,
		Registerer: reg,
	})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	return &Server{
		retriever: retriever,
		store:     store,
		cfg:       &Config{},
		log:       log,
		metrics:   newServerMetrics(reg),
	}
}
