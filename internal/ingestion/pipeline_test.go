package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/uxlens/uxlens-go/internal/rag"
)

// fakeEmbedder returns a fixed-size zero vector per input text.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

// fakeDocStore records upserts and simulates pre-existing resources.
type fakeDocStore struct {
	existing map[string]bool
	upserted []rag.ResourceChunk
}

func (s *fakeDocStore) Search(ctx context.Context, query string, filter rag.SearchFilter, topK int) ([]rag.ResourceChunk, error) {
	return nil, nil
}

func (s *fakeDocStore) ExistsByID(ctx context.Context, resourceID string) (bool, error) {
	return s.existing[resourceID], nil
}

func (s *fakeDocStore) Upsert(ctx context.Context, chunks []rag.ResourceChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return errors.New("chunk/embedding length mismatch")
	}
	s.upserted = append(s.upserted, chunks...)
	return nil
}

func (s *fakeDocStore) Delete(ctx context.Context, resourceID string) error { return nil }

func (s *fakeDocStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	return rag.StoreStats{}, nil
}

func (s *fakeDocStore) Close() error { return nil }

// testResource returns a minimal valid resource for pipeline tests.
func testResource(url string) Resource {
	return Resource{
		Title:        "Designing with Grids",
		URL:          url,
		Content:      strings.Repeat("Grid systems bring order to layouts. ", 30),
		Category:     "Visual Design",
		Difficulty:   "Beginner",
		ResourceType: "article",
		Source:       "nngroup",
		Tags:         []string{"layout", "grids"},
	}
}

// TestIngest_ChunksEmbedsUpserts verifies the happy path end to end.
func TestIngest_ChunksEmbedsUpserts(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{existing: map[string]bool{}}
	emb := &fakeEmbedder{}
	p, err := NewPipeline(emb, store, &Config{ChunkSize: 200, ChunkOverlap: 20})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	res, err := p.Ingest(context.Background(), []Resource{testResource("https://example.com/grids")}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Ingested != 1 || res.Skipped != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Chunks != len(store.upserted) {
		t.Errorf("chunk count mismatch: result %d, store %d", res.Chunks, len(store.upserted))
	}
	if len(store.upserted) < 2 {
		t.Fatalf("expected multiple chunks for long content, got %d", len(store.upserted))
	}

	first := store.upserted[0]
	if first.Metadata.ResourceID != ResourceID("https://example.com/grids") {
		t.Errorf("unexpected resource ID %q", first.Metadata.ResourceID)
	}
	if first.Metadata.Category != "Visual Design" {
		t.Errorf("metadata not carried: %+v", first.Metadata)
	}
	if first.Metadata.EstimatedReadTime == 0 {
		t.Error("expected estimated read time to be filled in")
	}
}

// TestIngest_SkipsExisting verifies pre-existing resources are skipped unless
// forced.
func TestIngest_SkipsExisting(t *testing.T) {
	t.Parallel()

	url := "https://example.com/grids"
	store := &fakeDocStore{existing: map[string]bool{ResourceID(url): true}}
	emb := &fakeEmbedder{}
	p, err := NewPipeline(emb, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	res, err := p.Ingest(context.Background(), []Resource{testResource(url)}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Skipped != 1 || res.Ingested != 0 {
		t.Errorf("expected skip, got %+v", res)
	}
	if emb.calls != 0 {
		t.Errorf("expected no embedding calls for skipped resource, got %d", emb.calls)
	}
}

// TestIngest_ForceReingests verifies Force bypasses the existence check.
func TestIngest_ForceReingests(t *testing.T) {
	t.Parallel()

	url := "https://example.com/grids"
	store := &fakeDocStore{existing: map[string]bool{ResourceID(url): true}}
	p, err := NewPipeline(&fakeEmbedder{}, store, &Config{Force: true})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	res, err := p.Ingest(context.Background(), []Resource{testResource(url)}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Ingested != 1 {
		t.Errorf("expected re-ingest with Force, got %+v", res)
	}
}

// TestIngest_EmbedderFailureAborts verifies the first error stops the run.
func TestIngest_EmbedderFailureAborts(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{existing: map[string]bool{}}
	p, err := NewPipeline(&fakeEmbedder{fail: true}, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	_, err = p.Ingest(context.Background(), []Resource{testResource("https://example.com/a")}, nil)
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if len(store.upserted) != 0 {
		t.Errorf("expected no upserts after embed failure, got %d", len(store.upserted))
	}
}

// TestChunkID_UUIDShape verifies chunk IDs are deterministic and UUID-formatted.
func TestChunkID_UUIDShape(t *testing.T) {
	t.Parallel()

	uuidRe := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	id := ChunkID("https://example.com/a", 0)
	if !uuidRe.MatchString(id) {
		t.Errorf("chunk ID %q is not UUID-shaped", id)
	}
	if id != ChunkID("https://example.com/a", 0) {
		t.Error("chunk ID not deterministic")
	}
	if id == ChunkID("https://example.com/a", 1) {
		t.Error("distinct chunk indexes must yield distinct IDs")
	}
}

// TestLoadResources verifies JSON parsing and validation.
func TestLoadResources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "resources.json")
	content := `[
  {
    "title": "Usability 101",
    "url": "https://www.nngroup.com/articles/usability-101/",
    "content": "Usability is a quality attribute that assesses how easy interfaces are to use.",
    "category": "User Research",
    "difficulty": "Beginner",
    "tags": ["usability"]
  }
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	resources, err := LoadResources(path)
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}
	if len(resources) != 1 || resources[0].Category != "User Research" {
		t.Errorf("unexpected resources: %+v", resources)
	}
}

// TestLoadResources_RejectsMissingFields verifies url and content are required.
func TestLoadResources_RejectsMissingFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	noURL := filepath.Join(dir, "no_url.json")
	if err := os.WriteFile(noURL, []byte(`[{"title":"x","content":"y"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadResources(noURL); err == nil {
		t.Error("expected error for resource without url")
	}

	noContent := filepath.Join(dir, "no_content.json")
	if err := os.WriteFile(noContent, []byte(`[{"title":"x","url":"https://e.com"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadResources(noContent); err == nil {
		t.Error("expected error for resource without content")
	}
}
