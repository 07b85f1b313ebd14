// Package rag implements the retrieval-and-caching subsystem that turns a
// (career stage, category-score vector) pair into a ranked, deduplicated set
// of learning resources. It defines the DocumentStore and Embedder interfaces
// so the facade never depends on a specific vector backend.
package rag

import (
	"context"
)

// CategoryScore is one skill-assessment dimension from the quiz result.
// Supplied fresh per request and never mutated.
type CategoryScore struct {
	// Name is the category label (e.g. "Visual Design").
	Name string `json:"name"`

	// Score is the points the user achieved in this category.
	Score float64 `json:"score"`

	// MaxScore is the maximum achievable points for this category.
	MaxScore float64 `json:"maxScore"`
}

// Ratio returns the weakness metric score/maxScore. A zero or negative
// MaxScore yields 0, which ranks the category as weakest.
func (c CategoryScore) Ratio() float64 {
	if c.MaxScore <= 0 {
		return 0
	}
	return c.Score / c.MaxScore
}

// ResourceMetadata is the payload stored alongside every indexed chunk.
// ResourceID is a stable content address (sha256 of the resource URL) and is
// the deduplication key. The store owns these fields; the core reads them only.
type ResourceMetadata struct {
	// ResourceID identifies the underlying resource all chunks belong to.
	ResourceID string

	// Title is the resource title.
	Title string

	// URL is the canonical resource URL.
	URL string

	// Category is the skill category this resource teaches.
	Category string

	// Difficulty is the difficulty label (Beginner, Intermediate, Advanced).
	Difficulty string

	// ResourceType is the content format (article, video, podcast, tweet).
	ResourceType string

	// Source is the site or feed the resource was collected from.
	Source string

	// Tags are free-form topic labels.
	Tags []string

	// EstimatedReadTime is the reading time in minutes.
	EstimatedReadTime int

	// EngagementScore is an optional popularity signal for social content.
	EngagementScore float64

	// ViewCount is an optional view counter for social content.
	ViewCount int64
}

// ResourceChunk is a single similarity-search result: one indexed content
// fragment plus its distance to the query. Smaller distance means more
// similar. Chunks are ephemeral: produced per query, never persisted here.
type ResourceChunk struct {
	// ChunkID identifies this fragment within the store.
	ChunkID string

	// Content is the raw text of the fragment.
	Content string

	// Metadata is the owning resource's metadata.
	Metadata ResourceMetadata

	// Distance is the similarity-search distance (cosine-derived, ~[0,2]).
	Distance float64
}

// UniqueResource is the core's output unit: one record per distinct
// ResourceID, materialized from the first-seen chunk for that resource.
// Never mutated after construction.
type UniqueResource struct {
	ResourceID        string   `json:"resource_id"`
	Title             string   `json:"title"`
	URL               string   `json:"url"`
	Category          string   `json:"category"`
	Difficulty        string   `json:"difficulty"`
	ResourceType      string   `json:"resource_type"`
	Source            string   `json:"source"`
	Tags              []string `json:"tags"`
	EstimatedReadTime int      `json:"estimated_read_time"`

	// ContentPreview is the first 300 characters of the first-seen chunk.
	ContentPreview string `json:"content_preview"`

	// RelevanceScore is 1 - distance of the first-seen chunk.
	RelevanceScore float64 `json:"relevance_score"`

	// EngagementScore and ViewCount carry the social ranking signals through
	// deduplication so social results can be ordered by popularity.
	EngagementScore float64 `json:"engagement_score,omitempty"`
	ViewCount       int64   `json:"view_count,omitempty"`
}

// SearchFilter restricts a similarity search by exact metadata match.
// Zero-value fields are not applied.
type SearchFilter struct {
	// Category filters by skill category.
	Category string

	// Difficulty filters by difficulty label.
	Difficulty string

	// ResourceType filters by content format.
	ResourceType string
}

// IsZero reports whether no filter condition is set.
func (f SearchFilter) IsZero() bool {
	return f.Category == "" && f.Difficulty == "" && f.ResourceType == ""
}

// StoreStats summarizes the document store contents for the stats endpoint.
type StoreStats struct {
	// TotalChunks is the number of indexed content fragments.
	TotalChunks uint64 `json:"total_chunks"`

	// UniqueResources is the number of distinct resource IDs.
	UniqueResources int `json:"unique_resources"`

	// Categories counts chunks per category.
	Categories map[string]int `json:"categories"`

	// Difficulties counts chunks per difficulty label.
	Difficulties map[string]int `json:"difficulties"`

	// Sources counts chunks per origin site.
	Sources map[string]int `json:"sources"`
}

// LearningPath is a sequenced progression assembled from retrieved resources.
type LearningPath struct {
	// Stage is the career stage the path was built for.
	Stage string `json:"stage"`

	// Modules holds one entry per weak category, in weakness order.
	Modules []LearningModule `json:"modules"`
}

// LearningModule is the per-category portion of a LearningPath.
type LearningModule struct {
	// Category is the skill category this module addresses.
	Category string `json:"category"`

	// Goal is a short statement of what completing the module achieves.
	Goal string `json:"goal"`

	// Steps is the two-step Foundation → Advanced Application progression.
	Steps []LearningStep `json:"steps"`
}

// LearningStep is one difficulty tier within a LearningModule.
type LearningStep struct {
	// Level is the tier label ("Foundation" or "Advanced Application").
	Level string `json:"level"`

	// Resources are the retrieved resources for this tier.
	Resources []UniqueResource `json:"resources"`
}

// DocumentStore is the interface for the vector-search collection of learning
// resource chunks. Implementations must be safe to call from multiple
// goroutines.
type DocumentStore interface {
	// Search performs a semantic similarity search for the query text and
	// returns up to topK chunks ordered by ascending distance. The filter's
	// non-empty fields are applied as exact metadata matches.
	Search(ctx context.Context, query string, filter SearchFilter, topK int) ([]ResourceChunk, error)

	// ExistsByID reports whether any chunk for the given resource ID is
	// already indexed. Used by the ingestion path to skip known resources.
	ExistsByID(ctx context.Context, resourceID string) (bool, error)

	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []ResourceChunk, embeddings [][]float32) error

	// Delete removes every chunk belonging to the given resource ID.
	Delete(ctx context.Context, resourceID string) error

	// Stats summarizes the collection contents.
	Stats(ctx context.Context) (StoreStats, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
