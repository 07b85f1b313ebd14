package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval defaults shared by the facade operations.
const (
	// defaultTopK is the result count when the caller passes 0.
	defaultTopK = 5

	// fanOutCandidates is the number of candidate chunks requested per
	// fan-out query on the primary path.
	fanOutCandidates = 3

	// skillRelationshipCap bounds the merged skill-bridging result set.
	skillRelationshipCap = 5

	// defaultSocialLimit is the social media result count when the caller
	// passes 0.
	defaultSocialLimit = 8
)

// defaultResourceTypes are the social content formats searched when the
// caller does not narrow them.
var defaultResourceTypes = []string{"video", "podcast", "tweet"}

// Config holds Retriever construction parameters. The zero value of every
// field selects a sensible default.
type Config struct {
	// CacheTTL is how long a computed result set stays fresh (default: 1h).
	CacheTTL time.Duration

	// CacheMaxEntries bounds the result cache (default: 1024).
	CacheMaxEntries int

	// QueryTimeout is the per-query fan-out deadline (default: 5s).
	QueryTimeout time.Duration

	// DefaultTopK is the result count used when a caller passes 0 (default: 5).
	DefaultTopK int

	// Logger is the structured logger. If nil, slog.Default is used.
	Logger *slog.Logger

	// Registerer receives the retrieval metrics. If nil, the Prometheus
	// default registerer is used.
	Registerer prometheus.Registerer
}

// Retriever is the facade over the document store: cache lookup, parallel
// fan-out, deduplication, and ranking. Construct it once at process start and
// inject it into request handlers. It is safe for concurrent use and owns
// the process-wide result cache.
//
// No operation on Retriever returns an error for retrieval failures: the
// contract is graceful degradation to fewer (or zero) results. Callers that
// need an availability signal should probe the store directly.
type Retriever struct {
	// store performs the similarity searches.
	store DocumentStore

	// cache memoizes primary-path results per (stage, weak pair, topK).
	cache *resultCache

	// engine runs fan-out queries concurrently.
	engine *fanOutEngine

	// topK is the fallback result count.
	topK int

	// log is the structured logger for retrieval events.
	log *slog.Logger

	// metrics counts cache and query outcomes.
	metrics *ragMetrics
}

// NewRetriever constructs a Retriever over the given document store.
func NewRetriever(store DocumentStore, cfg *Config) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = defaultTopK
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := newRagMetrics(reg)
	return &Retriever{
		store:   store,
		cache:   newResultCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		engine:  newFanOutEngine(store, cfg.QueryTimeout, log, m),
		topK:    topK,
		log:     log,
		metrics: m,
	}, nil
}

// SemanticSearch runs a single similarity search and returns the deduplicated
// resources, capped at topK. Store failures degrade to an empty list.
func (r *Retriever) SemanticSearch(ctx context.Context, query string, filter SearchFilter, topK int) []UniqueResource {
	if topK <= 0 {
		topK = r.topK
	}

	chunks, err := r.store.Search(ctx, query, filter, topK)
	if err != nil {
		r.log.Warn("rag: search degraded to empty result",
			slog.String("query", query),
			slog.Any("error", err),
		)
		return []UniqueResource{}
	}

	unique := UniqueResources(chunks)
	return truncate(unique, topK)
}

// RetrieveResourcesForUser returns the ranked learning resources for a user's
// career stage and category score breakdown.
//
// Results are memoized per (stage, weakest pair, topK) for the cache TTL. On
// a miss, up to three queries run concurrently: one per weakest category
// (metadata-scoped) plus one stage-wide query. Partial fan-out failure yields
// partial results; total failure yields an empty list, never an error.
func (r *Retriever) RetrieveResourcesForUser(ctx context.Context, stage string, categories []CategoryScore, topK int) []UniqueResource {
	if topK <= 0 {
		topK = r.topK
	}

	key := cacheKey(stage, categories, topK)
	if cached, ok := r.cache.get(key); ok {
		r.metrics.cacheHits.Inc()
		r.log.Debug("rag: cache hit",
			slog.String("key", key[:8]),
			slog.Int("resources", len(cached)),
		)
		return cached
	}
	r.metrics.cacheMisses.Inc()

	queries := make([]querySpec, 0, 3)
	for _, cat := range WeakestCategories(categories, 2) {
		queries = append(queries, querySpec{
			query:  fmt.Sprintf("%s for %s level learning", cat, stage),
			filter: SearchFilter{Category: cat},
			topK:   fanOutCandidates,
		})
	}
	queries = append(queries, querySpec{
		query: fmt.Sprintf("Career growth for %s UX designer", stage),
		topK:  fanOutCandidates,
	})

	chunks := mergeChunks(r.engine.run(ctx, queries))
	results := UniqueResources(chunks)
	sortByRelevance(results)
	results = truncate(results, topK)

	r.cache.put(key, results)
	return results
}

// GenerateLearningPath assembles a two-step Foundation → Advanced Application
// progression for each of the up to two weakest categories supplied.
// Not cached; intended for lower-frequency calls.
func (r *Retriever) GenerateLearningPath(ctx context.Context, weakCategories []CategoryScore, stage string) LearningPath {
	path := LearningPath{Stage: stage, Modules: []LearningModule{}}

	for _, cat := range WeakestCategories(weakCategories, 2) {
		foundation := r.SemanticSearch(ctx,
			fmt.Sprintf("Fundamentals of %s", cat),
			SearchFilter{Category: cat, Difficulty: "Beginner"},
			2,
		)
		advanced := r.SemanticSearch(ctx,
			fmt.Sprintf("Advanced %s strategies", cat),
			SearchFilter{Category: cat, Difficulty: "Advanced"},
			2,
		)

		path.Modules = append(path.Modules, LearningModule{
			Category: cat,
			Goal:     fmt.Sprintf("Master %s concepts", cat),
			Steps: []LearningStep{
				{Level: "Foundation", Resources: foundation},
				{Level: "Advanced Application", Resources: advanced},
			},
		})
	}

	return path
}

// RetrieveLearningPaths returns step-by-step learning resources per category
// name. The per-category queries are independent and run through the fan-out
// engine; a failed query yields an empty list for that category only.
func (r *Retriever) RetrieveLearningPaths(ctx context.Context, categories []string) map[string][]UniqueResource {
	queries := make([]querySpec, len(categories))
	for i, cat := range categories {
		queries[i] = querySpec{
			query:  fmt.Sprintf("How to learn %s step by step guide", cat),
			filter: SearchFilter{Category: cat},
			topK:   3,
		}
	}

	results := r.engine.run(ctx, queries)

	paths := make(map[string][]UniqueResource, len(categories))
	for i, cat := range categories {
		paths[cat] = truncate(UniqueResources(results[i]), 3)
	}
	return paths
}

// RetrieveStageCompetencies returns resources describing what is expected of
// a designer at the given career stage.
func (r *Retriever) RetrieveStageCompetencies(ctx context.Context, stage string) []UniqueResource {
	query := fmt.Sprintf("What is expected of a %s UX designer skills responsibilities", stage)
	return r.SemanticSearch(ctx, query, SearchFilter{}, 5)
}

// RetrieveSkillRelationships returns content bridging each (weak, strong)
// category pair, deduplicated across pairs and capped at 5 total. The pair
// count is quadratic, so callers are expected to pass at most ~3 of each.
func (r *Retriever) RetrieveSkillRelationships(ctx context.Context, weakCats, strongCats []string) []UniqueResource {
	var merged []ResourceChunk
	for _, weak := range weakCats {
		for _, strong := range strongCats {
			query := fmt.Sprintf("How does %s relate to %s in UX design", strong, weak)
			chunks, err := r.store.Search(ctx, query, SearchFilter{}, 1)
			if err != nil {
				r.log.Warn("rag: skill relationship query dropped",
					slog.String("query", query),
					slog.Any("error", err),
				)
				continue
			}
			merged = append(merged, chunks...)
		}
	}

	return truncate(UniqueResources(merged), skillRelationshipCap)
}

// RetrieveSocialMediaResources returns social content (videos, podcasts,
// tweets) for the user's stage and weakest categories, one query per resource
// type, merged and ranked by engagement rather than semantic relevance.
func (r *Retriever) RetrieveSocialMediaResources(ctx context.Context, stage string, categories []CategoryScore, resourceTypes []string, limit int) []UniqueResource {
	if len(resourceTypes) == 0 {
		resourceTypes = defaultResourceTypes
	}
	if limit <= 0 {
		limit = defaultSocialLimit
	}

	weakest := WeakestCategories(categories, 2)
	query := fmt.Sprintf("UX design insights for %s level", stage)
	if len(weakest) > 0 {
		query = fmt.Sprintf("%s for %s level UX designer", weakest[0], stage)
	}

	perType := limit/len(resourceTypes) + 2
	queries := make([]querySpec, len(resourceTypes))
	for i, rt := range resourceTypes {
		queries[i] = querySpec{
			query:  query,
			filter: SearchFilter{ResourceType: rt},
			topK:   perType,
		}
	}

	chunks := mergeChunks(r.engine.run(ctx, queries))
	results := UniqueResources(chunks)
	sortByEngagement(results)
	return truncate(results, limit)
}

// truncate caps resources at n without copying.
func truncate(resources []UniqueResource, n int) []UniqueResource {
	if len(resources) > n {
		return resources[:n]
	}
	return resources
}
