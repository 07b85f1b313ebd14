// Package server implements the HTTP server that exposes the retrieval and
// improvement-plan endpoints consumed by the assessment frontend.
// The server is started by the `uxlens serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uxlens/uxlens-go/internal/insights"
	"github.com/uxlens/uxlens-go/internal/logging"
	"github.com/uxlens/uxlens-go/internal/pregen"
	"github.com/uxlens/uxlens-go/internal/rag"
)

// New constructs a Server from the provided components and config. The
// retriever and store are required; planner and plans are optional and their
// endpoints return 503 when absent.
func New(retriever *rag.Retriever, store rag.DocumentStore, planner *insights.Generator, plans pregen.PlanStore, cfg *Config) (*Server, error) {
	if retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Long enough for a model-generated improvement plan.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.MetricsRegistry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = defaultRateLimit
	}
	rateBurst := cfg.RateBurst
	if rateBurst == 0 {
		rateBurst = defaultRateBurst
	}

	s := &Server{
		retriever: retriever,
		planner:   planner,
		plans:     plans,
		store:     store,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(rateLimit, rateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: no API key configured, authentication disabled")
	}

	// Protected API routes: auth + per-IP rate limiting + per-handler metrics.
	api := http.NewServeMux()
	api.HandleFunc("POST /api/rag/resources", s.instrument("rag_resources", s.handleResources))
	api.HandleFunc("POST /api/rag/search", s.instrument("rag_search", s.handleSearch))
	api.HandleFunc("POST /api/rag/learning-path", s.instrument("rag_learning_path", s.handleLearningPath))
	api.HandleFunc("POST /api/rag/learning-paths", s.instrument("rag_learning_paths", s.handleLearningPaths))
	api.HandleFunc("GET /api/rag/competencies", s.instrument("rag_competencies", s.handleCompetencies))
	api.HandleFunc("POST /api/rag/skill-relationships", s.instrument("rag_skill_relationships", s.handleSkillRelationships))
	api.HandleFunc("POST /api/rag/social", s.instrument("rag_social", s.handleSocial))
	api.HandleFunc("GET /api/rag/stats", s.instrument("rag_stats", s.handleStoreStats))
	api.HandleFunc("POST /api/improvement-plan", s.instrument("improvement_plan", s.handleImprovementPlan))
	api.HandleFunc("POST /api/category-readup", s.instrument("category_readup", s.handleCategoryReadup))
	api.HandleFunc("GET /api/pregenerated/stats", s.instrument("pregenerated_stats", s.handlePlanStats))
	protected := authMiddleware(cfg.APIKey, rl.middleware(api))

	// Operational routes stay open: probes and scrapers carry no credentials.
	mux := http.NewServeMux()
	mux.Handle("/api/", protected)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
// On failure it writes a 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing to do but log.
		slog.Default().Error("server: response encode failed", slog.Any("error", err))
	}
}
