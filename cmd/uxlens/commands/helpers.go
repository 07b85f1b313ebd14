package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/uxlens/uxlens-go/internal/embedder"
	"github.com/uxlens/uxlens-go/internal/pregen"
	"github.com/uxlens/uxlens-go/internal/rag"
)

// defaultCollection is the Qdrant collection holding learning resource chunks.
const defaultCollection = "ux_resources"

// buildStore validates the embedding configuration, constructs the embedder,
// and connects to Qdrant. Shared by serve, ingest, and stats.
func buildStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, rag.Embedder, error) {
	if err := embedder.ValidateForRetrieval(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embBackend))

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)

	store, err := rag.NewQdrantStore(ctx, emb, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: uint64(vectorSize), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return store, emb, nil
}

// buildRetriever constructs the retrieval facade over the store, applying the
// RETRIEVAL_* environment overrides.
func buildRetriever(store rag.DocumentStore, log *slog.Logger) (*rag.Retriever, error) {
	return rag.NewRetriever(store, &rag.Config{
		CacheTTL:        getEnvDuration("RETRIEVAL_CACHE_TTL", 0),
		CacheMaxEntries: getEnvInt("RETRIEVAL_CACHE_MAX_ENTRIES", 0),
		QueryTimeout:    getEnvDuration("RETRIEVAL_QUERY_TIMEOUT", 0),
		DefaultTopK:     getEnvInt("RETRIEVAL_TOP_K", 0),
		Logger:          log,
	})
}

// openPlanStore opens the pre-generated plan store. UXLENS_PREGEN_DB
// overrides the default path (~/.uxlens/pregen.db); "disabled" turns the
// store off and returns nil.
func openPlanStore(log *slog.Logger) pregen.PlanStore {
	dbPath := os.Getenv("UXLENS_PREGEN_DB")
	if dbPath == "disabled" {
		log.Info("pregen: disabled via UXLENS_PREGEN_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = pregen.DefaultDBPath()
		if err != nil {
			log.Warn("pregen: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}

	store, err := pregen.Open(dbPath)
	if err != nil {
		log.Warn("pregen: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("pregen: store opened", slog.String("path", dbPath))
	return store
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
