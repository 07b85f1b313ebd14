package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uxlens/uxlens-go/internal/insights"
	"github.com/uxlens/uxlens-go/internal/pregen"
	"github.com/uxlens/uxlens-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. Must be
	// long enough for a model-generated improvement plan.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. If nil, the Prometheus
	// default registerer is used. Tests inject a fresh registry here.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. If nil, the default gatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// Server is the HTTP server exposing retrieval and improvement-plan endpoints.
type Server struct {
	// retriever answers all /api/rag/* requests.
	retriever *rag.Retriever
	// planner generates improvement plans; nil disables /api/improvement-plan.
	planner *insights.Generator
	// plans backs GET /api/pregenerated/stats; nil disables the endpoint.
	plans pregen.PlanStore
	// store backs GET /api/rag/stats.
	store rag.DocumentStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// resourcesRequest is the JSON body for POST /api/rag/resources.
type resourcesRequest struct {
	// Stage is the user's career stage (junior, mid, senior, lead).
	Stage string `json:"stage"`
	// Categories is the per-category score breakdown from the assessment.
	Categories []rag.CategoryScore `json:"categories"`
	// TopK caps the result count; 0 selects the server default.
	TopK int `json:"topK,omitempty"`
}

// resourcesResponse is the JSON response for POST /api/rag/resources.
type resourcesResponse struct {
	// Resources is the ranked, deduplicated result list. Never null.
	Resources []rag.UniqueResource `json:"resources"`
}

// searchRequest is the JSON body for POST /api/rag/search.
type searchRequest struct {
	// Query is the free-text similarity query.
	Query string `json:"query"`
	// Category, Difficulty, and ResourceType are optional exact-match filters.
	Category     string `json:"category,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
	// TopK caps the result count; 0 selects the server default.
	TopK int `json:"topK,omitempty"`
}

// learningPathRequest is the JSON body for POST /api/rag/learning-path.
type learningPathRequest struct {
	// Stage is the user's career stage.
	Stage string `json:"stage"`
	// Categories is the per-category score breakdown; the two weakest drive
	// the generated path.
	Categories []rag.CategoryScore `json:"categories"`
}

// learningPathsRequest is the JSON body for POST /api/rag/learning-paths.
type learningPathsRequest struct {
	// Categories names the skill categories to build paths for.
	Categories []string `json:"categories"`
}

// learningPathsResponse is the JSON response for POST /api/rag/learning-paths.
type learningPathsResponse struct {
	// Paths maps category name to its step-by-step resources.
	Paths map[string][]rag.UniqueResource `json:"paths"`
}

// skillRelationshipsRequest is the JSON body for POST /api/rag/skill-relationships.
type skillRelationshipsRequest struct {
	// WeakCategories are the user's weak skill categories.
	WeakCategories []string `json:"weakCategories"`
	// StrongCategories are the user's strong skill categories.
	StrongCategories []string `json:"strongCategories"`
}

// readupRequest is the JSON body for POST /api/category-readup.
type readupRequest struct {
	// Category is the skill category to introduce.
	Category string `json:"category"`
	// Stage is the optional career stage the readup is tailored to.
	Stage string `json:"stage,omitempty"`
}

// readupResponse is the JSON response for POST /api/category-readup.
type readupResponse struct {
	// Category echoes the requested category.
	Category string `json:"category"`
	// Readup is the generated narrative text.
	Readup string `json:"readup"`
}

// socialRequest is the JSON body for POST /api/rag/social.
type socialRequest struct {
	// Stage is the user's career stage.
	Stage string `json:"stage"`
	// Categories is the per-category score breakdown.
	Categories []rag.CategoryScore `json:"categories"`
	// ResourceTypes narrows the content formats; empty selects the defaults
	// (video, podcast, tweet).
	ResourceTypes []string `json:"resourceTypes,omitempty"`
	// Limit caps the merged result count; 0 selects the server default.
	Limit int `json:"limit,omitempty"`
}
