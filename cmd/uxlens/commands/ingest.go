package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/uxlens/uxlens-go/internal/ingestion"
	"github.com/uxlens/uxlens-go/internal/logging"
)

// NewIngestCmd constructs the `uxlens ingest` command, which indexes curated
// learning resources into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var file string
	var force bool
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest learning resources into the vector store",
		Long: `Read a JSON file of curated learning resources, chunk and embed their
content, and upsert the chunks into the Qdrant collection.

Resources already present in the collection (matched by the content address of
their URL) are skipped unless --force is given. Source platform, resource type,
and estimated read time are inferred from each resource when not provided.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: ux_resources)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  uxlens ingest --file resources.json
  uxlens ingest --file resources.json --force
  EMBEDDING_PROVIDER=openai uxlens ingest --file resources.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if file == "" {
				return fmt.Errorf("ingest: --file is required")
			}

			resources, err := ingestion.LoadResources(file)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("resources loaded", slog.String("file", file), slog.Int("count", len(resources)))

			store, emb, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				ChunkSize: chunkSize,
				Force:     force,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			result, err := pipeline.Ingest(ctx, resources, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("ingested", result.Ingested),
				slog.Int("skipped", result.Skipped),
				slog.Int("chunks", result.Chunks),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the resources JSON file")
	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest resources already present in the collection")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in characters (default: 1000)")

	return cmd
}
