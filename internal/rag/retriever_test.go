package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// fakeStore is an in-memory DocumentStore for retriever tests. Its respond
// function maps each search to the chunks (or error) it should yield, and it
// records every query it receives.
type fakeStore struct {
	mu       sync.Mutex
	queries  []string
	filters  []SearchFilter
	searches int

	respond func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error)
}

func (s *fakeStore) Search(ctx context.Context, query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.filters = append(s.filters, filter)
	s.searches++
	respond := s.respond
	s.mu.Unlock()

	if respond == nil {
		return nil, nil
	}
	return respond(query, filter, topK)
}

func (s *fakeStore) ExistsByID(ctx context.Context, resourceID string) (bool, error) {
	return false, nil
}

func (s *fakeStore) Upsert(ctx context.Context, chunks []ResourceChunk, embeddings [][]float32) error {
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, resourceID string) error { return nil }

func (s *fakeStore) Stats(ctx context.Context) (StoreStats, error) { return StoreStats{}, nil }

func (s *fakeStore) Close() error { return nil }

// searchCount returns how many searches the store has served.
func (s *fakeStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// seenQueries returns a copy of the recorded query strings.
func (s *fakeStore) seenQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// newTestRetriever builds a Retriever over store with a quiet logger and a
// private metrics registry.
func newTestRetriever(t *testing.T, store DocumentStore) *Retriever {
	t.Helper()

	r, err := NewRetriever(store, &Config{
		Logger:     slog.New(slog.DiscardHandler),
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return r
}

// testCategories is a three-way score breakdown where B and C are weakest.
func testCategories() []CategoryScore {
	return []CategoryScore{
		{Name: "User Research", Score: 90, MaxScore: 100},
		{Name: "Visual Design", Score: 30, MaxScore: 100},
		{Name: "Prototyping", Score: 50, MaxScore: 100},
	}
}

// TestNewRetriever_NilStore verifies construction fails without a store.
func TestNewRetriever_NilStore(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

// TestRetrieveResourcesForUser_QueryDispatch verifies the fan-out targets the
// two weakest categories plus a stage-wide career query.
func TestRetrieveResourcesForUser_QueryDispatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := newTestRetriever(t, store)

	r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)

	queries := store.seenQueries()
	if len(queries) != 3 {
		t.Fatalf("expected 3 fan-out queries, got %d: %v", len(queries), queries)
	}

	want := map[string]bool{
		"Visual Design for mid level learning": false,
		"Prototyping for mid level learning":   false,
		"Career growth for mid UX designer":    false,
	}
	for _, q := range queries {
		if _, ok := want[q]; !ok {
			t.Errorf("unexpected query %q", q)
			continue
		}
		want[q] = true
	}
	for q, seen := range want {
		if !seen {
			t.Errorf("missing query %q", q)
		}
	}
}

// TestRetrieveResourcesForUser_CategoryFilters verifies the weak-category
// queries are metadata-scoped while the career query is unscoped.
func TestRetrieveResourcesForUser_CategoryFilters(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := newTestRetriever(t, store)

	r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)

	store.mu.Lock()
	defer store.mu.Unlock()
	var scoped, unscoped int
	for _, f := range store.filters {
		if f.IsZero() {
			unscoped++
		} else if f.Category != "" {
			scoped++
		}
	}
	if scoped != 2 || unscoped != 1 {
		t.Errorf("expected 2 category-scoped + 1 unscoped query, got %d/%d", scoped, unscoped)
	}
}

// TestRetrieveResourcesForUser_CacheHit verifies the second identical call is
// served from the cache with zero additional store traffic and an identical
// result list.
func TestRetrieveResourcesForUser_CacheHit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			return []ResourceChunk{chunk("r-"+filter.Category, 0.2)}, nil
		},
	}
	r := newTestRetriever(t, store)

	first := r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)
	afterFirst := store.searchCount()
	second := r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)

	if got := store.searchCount(); got != afterFirst {
		t.Errorf("expected no store traffic on cache hit, searches went %d -> %d", afterFirst, got)
	}
	if len(first) != len(second) {
		t.Fatalf("cached result length differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ResourceID != second[i].ResourceID {
			t.Errorf("position %d: %s vs %s", i, first[i].ResourceID, second[i].ResourceID)
		}
	}
}

// TestRetrieveResourcesForUser_Ranking verifies results come back in strictly
// descending relevance order regardless of arrival order.
func TestRetrieveResourcesForUser_Ranking(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			switch filter.Category {
			case "Visual Design":
				return []ResourceChunk{chunk("far", 0.9)}, nil
			case "Prototyping":
				return []ResourceChunk{chunk("near", 0.1)}, nil
			default:
				return []ResourceChunk{chunk("middle", 0.5)}, nil
			}
		},
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)
	if len(got) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].RelevanceScore > got[i-1].RelevanceScore {
			t.Errorf("position %d out of order: %v after %v", i, got[i].RelevanceScore, got[i-1].RelevanceScore)
		}
	}
	if got[0].ResourceID != "near" || got[2].ResourceID != "far" {
		t.Errorf("unexpected ranking: %s, %s, %s", got[0].ResourceID, got[1].ResourceID, got[2].ResourceID)
	}
}

// TestRetrieveResourcesForUser_PartialFailure verifies a single failing query
// drops silently while the surviving queries still contribute results.
func TestRetrieveResourcesForUser_PartialFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			if filter.Category == "Visual Design" {
				return nil, errors.New("connection refused")
			}
			return []ResourceChunk{chunk("r-"+query, 0.3)}, nil
		},
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)
	if len(got) != 2 {
		t.Errorf("expected 2 resources from surviving queries, got %d", len(got))
	}
}

// TestRetrieveResourcesForUser_TotalFailure verifies an empty, non-nil list
// when every query fails.
func TestRetrieveResourcesForUser_TotalFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			return nil, errors.New("store down")
		},
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 5)
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Errorf("expected 0 resources, got %d", len(got))
	}
}

// TestRetrieveResourcesForUser_TopKTruncation verifies the merged set is
// capped at the requested count after ranking.
func TestRetrieveResourcesForUser_TopKTruncation(t *testing.T) {
	t.Parallel()

	var n int
	var mu sync.Mutex
	store := &fakeStore{}
	store.respond = func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
		mu.Lock()
		defer mu.Unlock()
		chunks := make([]ResourceChunk, 3)
		for i := range chunks {
			n++
			chunks[i] = chunk(fmt.Sprintf("r%d", n), 0.5)
		}
		return chunks, nil
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveResourcesForUser(context.Background(), "mid", testCategories(), 4)
	if len(got) != 4 {
		t.Errorf("expected 4 resources after truncation, got %d", len(got))
	}
}

// TestSemanticSearch_DegradesOnError verifies an empty list instead of an
// error when the store fails.
func TestSemanticSearch_DegradesOnError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			return nil, errors.New("store down")
		},
	}
	r := newTestRetriever(t, store)

	got := r.SemanticSearch(context.Background(), "color theory", SearchFilter{}, 5)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

// TestGenerateLearningPath verifies the Foundation / Advanced Application
// module structure and the difficulty-scoped queries behind it.
func TestGenerateLearningPath(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			return []ResourceChunk{chunk("r-"+filter.Difficulty+"-"+filter.Category, 0.2)}, nil
		},
	}
	r := newTestRetriever(t, store)

	weak := []CategoryScore{
		{Name: "Visual Design", Score: 30, MaxScore: 100},
		{Name: "Prototyping", Score: 50, MaxScore: 100},
	}
	path := r.GenerateLearningPath(context.Background(), weak, "mid")

	if path.Stage != "mid" {
		t.Errorf("expected stage mid, got %q", path.Stage)
	}
	if len(path.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(path.Modules))
	}

	m := path.Modules[0]
	if m.Category != "Visual Design" {
		t.Errorf("expected first module for Visual Design, got %q", m.Category)
	}
	if m.Goal != "Master Visual Design concepts" {
		t.Errorf("unexpected goal %q", m.Goal)
	}
	if len(m.Steps) != 2 || m.Steps[0].Level != "Foundation" || m.Steps[1].Level != "Advanced Application" {
		t.Fatalf("unexpected steps: %+v", m.Steps)
	}
	if len(m.Steps[0].Resources) == 0 {
		t.Error("expected foundation resources")
	}

	// Each module runs a Beginner and an Advanced scoped search.
	queries := store.seenQueries()
	if len(queries) != 4 {
		t.Errorf("expected 4 searches, got %d", len(queries))
	}
}

// TestRetrieveLearningPaths verifies one result list per requested category
// and isolation of per-category query failures.
func TestRetrieveLearningPaths(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			if filter.Category == "Broken" {
				return nil, errors.New("store down")
			}
			return []ResourceChunk{chunk("r-"+filter.Category, 0.2)}, nil
		},
	}
	r := newTestRetriever(t, store)

	paths := r.RetrieveLearningPaths(context.Background(), []string{"Visual Design", "Broken"})
	if len(paths) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(paths))
	}
	if len(paths["Visual Design"]) != 1 {
		t.Errorf("expected 1 resource for Visual Design, got %d", len(paths["Visual Design"]))
	}
	if len(paths["Broken"]) != 0 {
		t.Errorf("expected empty list for failed category, got %d", len(paths["Broken"]))
	}
}

// TestRetrieveStageCompetencies verifies the expectation query shape.
func TestRetrieveStageCompetencies(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			return []ResourceChunk{chunk("r1", 0.2)}, nil
		},
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveStageCompetencies(context.Background(), "senior")
	if len(got) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(got))
	}

	queries := store.seenQueries()
	if len(queries) != 1 || !strings.Contains(queries[0], "senior UX designer") {
		t.Errorf("unexpected queries: %v", queries)
	}
}

// TestRetrieveSkillRelationships verifies one query per (weak, strong) pair,
// cross-pair deduplication, and the result cap.
func TestRetrieveSkillRelationships(t *testing.T) {
	t.Parallel()

	var n int
	var mu sync.Mutex
	store := &fakeStore{}
	store.respond = func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		// Repeat every third resource to exercise dedup.
		return []ResourceChunk{chunk(fmt.Sprintf("r%d", n%3), 0.2)}, nil
	}
	r := newTestRetriever(t, store)

	weak := []string{"Visual Design", "Prototyping"}
	strong := []string{"User Research", "Interaction Design"}
	got := r.RetrieveSkillRelationships(context.Background(), weak, strong)

	if store.searchCount() != 4 {
		t.Errorf("expected 4 pair queries, got %d", store.searchCount())
	}
	if len(got) != 3 {
		t.Errorf("expected 3 deduplicated resources, got %d", len(got))
	}
}

// TestRetrieveSkillRelationships_Cap verifies the merged set never exceeds 5.
func TestRetrieveSkillRelationships_Cap(t *testing.T) {
	t.Parallel()

	var n int
	var mu sync.Mutex
	store := &fakeStore{}
	store.respond = func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return []ResourceChunk{chunk(fmt.Sprintf("r%d", n), 0.2)}, nil
	}
	r := newTestRetriever(t, store)

	weak := []string{"A", "B", "C"}
	strong := []string{"X", "Y", "Z"}
	got := r.RetrieveSkillRelationships(context.Background(), weak, strong)

	if len(got) != 5 {
		t.Errorf("expected cap of 5, got %d", len(got))
	}
}

// TestRetrieveSocialMediaResources verifies the per-type fan-out, engagement
// ranking, and the overall limit.
func TestRetrieveSocialMediaResources(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		respond: func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
			c := chunk("r-"+filter.ResourceType, 0.5)
			switch filter.ResourceType {
			case "video":
				c.Metadata.EngagementScore = 900
			case "podcast":
				c.Metadata.ViewCount = 5000
			case "tweet":
				c.Metadata.ViewCount = 10
			}
			return []ResourceChunk{c}, nil
		},
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveSocialMediaResources(context.Background(), "mid", testCategories(), nil, 8)
	if len(got) != 3 {
		t.Fatalf("expected 3 resources (one per default type), got %d", len(got))
	}

	wantOrder := []string{"r-video", "r-podcast", "r-tweet"}
	for i, want := range wantOrder {
		if got[i].ResourceID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ResourceID)
		}
	}
}

// TestRetrieveSocialMediaResources_QueryShape verifies the weakest category
// drives the search text and the limit caps the merged set.
func TestRetrieveSocialMediaResources_QueryShape(t *testing.T) {
	t.Parallel()

	var n int
	var mu sync.Mutex
	store := &fakeStore{}
	store.respond = func(query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
		mu.Lock()
		defer mu.Unlock()
		chunks := make([]ResourceChunk, topK)
		for i := range chunks {
			n++
			chunks[i] = chunk(fmt.Sprintf("r%d", n), 0.5)
		}
		return chunks, nil
	}
	r := newTestRetriever(t, store)

	got := r.RetrieveSocialMediaResources(context.Background(), "mid", testCategories(), []string{"video", "tweet"}, 3)
	if len(got) != 3 {
		t.Errorf("expected limit of 3, got %d", len(got))
	}

	for _, q := range store.seenQueries() {
		if q != "Visual Design for mid level UX designer" {
			t.Errorf("unexpected query %q", q)
		}
	}
}

// TestRetrieveSocialMediaResources_NoCategories verifies the stage-only
// fallback query when no score breakdown is supplied.
func TestRetrieveSocialMediaResources_NoCategories(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := newTestRetriever(t, store)

	r.RetrieveSocialMediaResources(context.Background(), "junior", nil, []string{"video"}, 4)

	queries := store.seenQueries()
	if len(queries) != 1 || queries[0] != "UX design insights for junior level" {
		t.Errorf("unexpected queries: %v", queries)
	}
}
