// Package ingestion implements the learning resource ingestion pipeline.
// It loads curated UX resources from a JSON file, chunks each resource's
// content, embeds the chunks, and upserts the results into the vector store.
// This pipeline is invoked by the `uxlens ingest` CLI command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/uxlens/uxlens-go/internal/rag"
)

// Resource is one curated learning resource as it appears in the ingestion
// JSON file.
type Resource struct {
	// Title is the human-readable resource title.
	Title string `json:"title"`

	// URL is the canonical resource location, also the identity key.
	URL string `json:"url"`

	// Content is the full text used for chunking and embedding.
	Content string `json:"content"`

	// Category is the UX skill category this resource teaches.
	Category string `json:"category"`

	// Difficulty is Beginner, Intermediate, or Advanced.
	Difficulty string `json:"difficulty"`

	// ResourceType classifies the format (article, video, podcast, tweet, course).
	ResourceType string `json:"resource_type"`

	// Source is the publishing platform (youtube, medium, nngroup, ...).
	Source string `json:"source"`

	// Tags are free-form topic labels.
	Tags []string `json:"tags"`

	// EstimatedReadTime is the consumption time in minutes. Zero means
	// estimate it from the content length.
	EstimatedReadTime int `json:"estimated_read_time"`

	// EngagementScore is the platform engagement metric, when known.
	EngagementScore float64 `json:"engagement_score"`

	// ViewCount is the platform view count, when known.
	ViewCount int64 `json:"view_count"`
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per content chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive
	// chunks. Defaults to 100 if zero or out of range.
	ChunkOverlap int

	// Force re-ingests resources that already exist in the store.
	Force bool
}

// Result summarizes one ingestion run.
type Result struct {
	// Ingested is the number of resources written to the store.
	Ingested int
	// Skipped is the number of resources already present and left untouched.
	Skipped int
	// Chunks is the total number of chunks upserted.
	Chunks int
}

// Pipeline orchestrates the load → chunk → embed → upsert flow for a set of
// learning resources.
type Pipeline struct {
	// embedder converts content chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.DocumentStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.DocumentStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// LoadResources reads and validates a resource JSON file.
func LoadResources(path string) ([]Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
	}

	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("ingestion: parse %s: %w", path, err)
	}

	for i, r := range resources {
		if r.URL == "" {
			return nil, fmt.Errorf("ingestion: resource %d (%q) has no url", i, r.Title)
		}
		if strings.TrimSpace(r.Content) == "" {
			return nil, fmt.Errorf("ingestion: resource %d (%s) has no content", i, r.URL)
		}
	}
	return resources, nil
}

// Ingest chunks, embeds, and stores all provided resources. Resources already
// present in the store are skipped unless Config.Force is set. Processing is
// sequential and the first error aborts the run. Progress is reported via the
// optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, resources []Resource, progress func(msg string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var res Result
	for _, src := range resources {
		resourceID := ResourceID(src.URL)

		if !p.cfg.Force {
			exists, err := p.store.ExistsByID(ctx, resourceID)
			if err != nil {
				return res, fmt.Errorf("ingestion: existence check for %s: %w", src.URL, err)
			}
			if exists {
				res.Skipped++
				progress(fmt.Sprintf("skipping %s (already ingested)", src.URL))
				continue
			}
		}

		texts := p.chunk(src.Content)
		if len(texts) == 0 {
			res.Skipped++
			progress(fmt.Sprintf("skipping %s (empty content)", src.URL))
			continue
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", src.URL, len(texts)))

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return res, fmt.Errorf("ingestion: embedding failed for %s: %w", src.URL, err)
		}

		meta := p.metadata(src, resourceID)
		chunks := make([]rag.ResourceChunk, len(texts))
		for i, text := range texts {
			chunks[i] = rag.ResourceChunk{
				ChunkID:  ChunkID(src.URL, i),
				Content:  text,
				Metadata: meta,
			}
		}

		if err := p.store.Upsert(ctx, chunks, embeddings); err != nil {
			return res, fmt.Errorf("ingestion: upsert failed for %s: %w", src.URL, err)
		}

		res.Ingested++
		res.Chunks += len(chunks)
		progress(fmt.Sprintf("ingested %d chunks from %s", len(chunks), src.URL))
	}

	return res, nil
}

// metadata builds the shared chunk metadata for one resource, filling gaps
// with inferred values.
func (p *Pipeline) metadata(src Resource, resourceID string) rag.ResourceMetadata {
	inferred := InferMetadata(src.URL)

	source := src.Source
	if source == "" {
		source = inferred.Source
	}
	resourceType := src.ResourceType
	if resourceType == "" {
		resourceType = inferred.ResourceType
	}
	readTime := src.EstimatedReadTime
	if readTime <= 0 {
		readTime = EstimateReadTime(src.Content)
	}

	return rag.ResourceMetadata{
		ResourceID:        resourceID,
		Title:             src.Title,
		URL:               src.URL,
		Category:          src.Category,
		Difficulty:        src.Difficulty,
		ResourceType:      resourceType,
		Source:            source,
		Tags:              src.Tags,
		EstimatedReadTime: readTime,
		EngagementScore:   src.EngagementScore,
		ViewCount:         src.ViewCount,
	}
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// ResourceID derives the deterministic resource identity from its URL.
func ResourceID(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h[:16])
}

// ChunkID derives a deterministic, UUID-formatted ID for a content chunk from
// its resource URL and chunk index. Qdrant requires point IDs to be UUIDs or
// unsigned integers, so the hash bytes are rendered in UUID form.
func ChunkID(url string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", url, index)))
	return fmt.Sprintf("%x-%x-%x-%x-%x", h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}
