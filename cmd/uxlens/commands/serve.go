package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/spf13/cobra"

	"github.com/uxlens/uxlens-go/internal/insights"
	"github.com/uxlens/uxlens-go/internal/logging"
	"github.com/uxlens/uxlens-go/internal/provider"
	"github.com/uxlens/uxlens-go/internal/server"
	"github.com/uxlens/uxlens-go/internal/tracing"
)

// NewServeCmd constructs the `uxlens serve` command, which starts the HTTP
// retrieval API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the uxlens HTTP retrieval API",
		Long: `Start the uxlens HTTP server.

The server exposes the retrieval endpoints under /api/rag/*, the improvement
plan endpoint at /api/improvement-plan, and operational endpoints at
/api/health, /api/ready, and /metrics.

A chat model is optional: without one, improvement plans are served from the
pre-generated store only, and requests without a stored plan fail.

Examples:
  uxlens serve
  uxlens serve --port 9090
  MODEL_PROVIDER=openai uxlens serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			// A missing or misconfigured model degrades to pregen-only plans
			// instead of refusing to start: retrieval does not need a model.
			var chatModel einomodel.ToolCallingChatModel
			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				log.Warn("model provider unavailable, improvement plans limited to pre-generated store",
					slog.Any("error", err),
				)
				chatModel = nil
			} else {
				log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))
			}

			store, _, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()

			retriever, err := buildRetriever(store, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			plans := openPlanStore(log)
			if plans != nil {
				defer func() { _ = plans.Close() }()
			}

			var planner *insights.Generator
			if chatModel != nil || plans != nil {
				planner, err = insights.NewGenerator(chatModel, retriever, plans, &insights.Config{Logger: log})
				if err != nil {
					return fmt.Errorf("serve: failed to create plan generator: %w", err)
				}
			}

			pingers := []server.Pinger{server.NewQdrantPinger(store.Client())}
			if plans != nil {
				pingers = append(pingers, server.NewPlanStorePinger(plans))
			}
			if chatModel != nil {
				pingers = append(pingers, server.NewModelPinger(chatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")))
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			srv, err := server.New(retriever, store, planner, plans, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("UXLENS_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
