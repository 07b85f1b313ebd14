package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys used for chunk metadata in the Qdrant collection.
const (
	payloadContent         = "content"
	payloadResourceID      = "resource_id"
	payloadTitle           = "title"
	payloadURL             = "url"
	payloadCategory        = "category"
	payloadDifficulty      = "difficulty"
	payloadResourceType    = "resource_type"
	payloadSource          = "source"
	payloadTags            = "tags"
	payloadReadTime        = "estimated_read_time"
	payloadEngagementScore = "engagement_score"
	payloadViewCount       = "view_count"
)

// statsScrollLimit caps the number of points aggregated by Stats. The curated
// knowledge base is a few thousand chunks; a single scroll covers it.
const statsScrollLimit = 10000

// QdrantConfig holds connection parameters for a Qdrant document store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements DocumentStore backed by a Qdrant collection. Query
// text is embedded at search time via the configured Embedder, then matched
// with cosine similarity.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// embedder converts query text to a dense vector.
	embedder Embedder

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore, ensuring the target collection exists
// (creating it if necessary), and returns a ready-to-use DocumentStore.
func NewQdrantStore(ctx context.Context, embedder Embedder, cfg *QdrantConfig) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("qdrant: embedder must not be nil")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, embedder: embedder, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying Qdrant client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Search embeds the query text and performs a cosine similarity search,
// returning up to topK chunks ordered by ascending distance.
func (s *QdrantStore) Search(ctx context.Context, query string, filter SearchFilter, topK int) ([]ResourceChunk, error) {
	embeddings, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("qdrant: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("qdrant: embedder returned empty result for query")
	}

	limit := uint64(topK) //nolint:gosec // topK is a small positive count
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embeddings[0]...),
		Filter:         buildFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	chunks := make([]ResourceChunk, 0, len(results))
	for _, r := range results {
		chunk := ResourceChunk{
			ChunkID: r.Id.GetUuid(),
			// Qdrant reports cosine similarity; the core ranks by distance.
			Distance: 1 - float64(r.Score),
			Metadata: metadataFromPayload(r.Payload),
		}
		if v, ok := r.Payload[payloadContent]; ok {
			chunk.Content = v.GetStringValue()
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// ExistsByID reports whether any chunk for the resource ID is indexed.
func (s *QdrantStore) ExistsByID(ctx context.Context, resourceID string) (bool, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadResourceID, resourceID)},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("qdrant: count for resource %q failed: %w", resourceID, err)
	}
	return count > 0, nil
}

// Upsert stores or updates a batch of chunks with their embeddings.
// Chunk IDs must be UUID-formatted; the ingestion pipeline derives them
// deterministically from the resource URL and chunk index.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []ResourceChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunk.ChunkID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payloadFromChunk(chunk)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Delete removes every chunk belonging to the given resource ID.
func (s *QdrantStore) Delete(ctx context.Context, resourceID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadResourceID, resourceID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete of resource %q failed: %w", resourceID, err)
	}

	return nil
}

// Stats aggregates collection contents by scrolling stored payloads.
func (s *QdrantStore) Stats(ctx context.Context) (StoreStats, error) {
	total, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return StoreStats{}, fmt.Errorf("qdrant: count failed: %w", err)
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          qdrant.PtrOf(uint32(statsScrollLimit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return StoreStats{}, fmt.Errorf("qdrant: scroll failed: %w", err)
	}

	stats := StoreStats{
		TotalChunks:  total,
		Categories:   make(map[string]int),
		Difficulties: make(map[string]int),
		Sources:      make(map[string]int),
	}

	resources := make(map[string]struct{})
	for _, p := range points {
		m := metadataFromPayload(p.Payload)
		if m.ResourceID != "" {
			resources[m.ResourceID] = struct{}{}
		}
		stats.Categories[labelOrUnknown(m.Category)]++
		stats.Difficulties[labelOrUnknown(m.Difficulty)]++
		stats.Sources[labelOrUnknown(m.Source)]++
	}
	stats.UniqueResources = len(resources)

	return stats, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// buildFilter converts a SearchFilter into Qdrant match conditions.
// Returns nil when no condition is set, which Qdrant treats as unfiltered.
func buildFilter(f SearchFilter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*qdrant.Condition
	if f.Category != "" {
		must = append(must, qdrant.NewMatch(payloadCategory, f.Category))
	}
	if f.Difficulty != "" {
		must = append(must, qdrant.NewMatch(payloadDifficulty, f.Difficulty))
	}
	if f.ResourceType != "" {
		must = append(must, qdrant.NewMatch(payloadResourceType, f.ResourceType))
	}
	return &qdrant.Filter{Must: must}
}

// payloadFromChunk flattens chunk metadata into a Qdrant payload map.
// Tags are stored comma-joined to keep the payload values scalar.
func payloadFromChunk(chunk ResourceChunk) map[string]any {
	m := chunk.Metadata
	payload := map[string]any{
		payloadContent:      chunk.Content,
		payloadResourceID:   m.ResourceID,
		payloadTitle:        m.Title,
		payloadURL:          m.URL,
		payloadCategory:     m.Category,
		payloadDifficulty:   m.Difficulty,
		payloadResourceType: m.ResourceType,
		payloadSource:       m.Source,
		payloadTags:         strings.Join(m.Tags, ","),
		payloadReadTime:     int64(m.EstimatedReadTime),
	}
	if m.EngagementScore > 0 {
		payload[payloadEngagementScore] = m.EngagementScore
	}
	if m.ViewCount > 0 {
		payload[payloadViewCount] = m.ViewCount
	}
	return payload
}

// metadataFromPayload rebuilds typed metadata from a stored payload map so
// internal code never handles missing-key ambiguity.
func metadataFromPayload(payload map[string]*qdrant.Value) ResourceMetadata {
	m := ResourceMetadata{}
	if payload == nil {
		return m
	}
	m.ResourceID = payloadString(payload, payloadResourceID)
	m.Title = payloadString(payload, payloadTitle)
	m.URL = payloadString(payload, payloadURL)
	m.Category = payloadString(payload, payloadCategory)
	m.Difficulty = payloadString(payload, payloadDifficulty)
	m.ResourceType = payloadString(payload, payloadResourceType)
	m.Source = payloadString(payload, payloadSource)
	if tags := payloadString(payload, payloadTags); tags != "" {
		m.Tags = strings.Split(tags, ",")
	}
	if v, ok := payload[payloadReadTime]; ok {
		m.EstimatedReadTime = int(v.GetIntegerValue())
	}
	if v, ok := payload[payloadEngagementScore]; ok {
		m.EngagementScore = v.GetDoubleValue()
	}
	if v, ok := payload[payloadViewCount]; ok {
		m.ViewCount = v.GetIntegerValue()
	}
	return m
}

// payloadString reads a string payload value, returning "" when absent.
func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// labelOrUnknown substitutes "Unknown" for empty metadata labels in stats.
func labelOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
