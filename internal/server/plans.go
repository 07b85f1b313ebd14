package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/uxlens/uxlens-go/internal/insights"
	"github.com/uxlens/uxlens-go/internal/logging"
)

// handleImprovementPlan handles POST /api/improvement-plan. The body is the
// assessment result; the response is the plan, served from the pre-generated
// store when possible and composed by the model otherwise.
func (s *Server) handleImprovementPlan(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		http.Error(w, "improvement plans are not configured", http.StatusServiceUnavailable)
		return
	}

	var a insights.Assessment
	if !decodeJSON(w, r, &a) {
		return
	}
	if a.Stage == "" {
		http.Error(w, "stage is required", http.StatusBadRequest)
		return
	}
	if a.MaxScore <= 0 {
		http.Error(w, "max_score must be positive", http.StatusBadRequest)
		return
	}

	start := time.Now()
	plan, err := s.planner.ImprovementPlan(r.Context(), a)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.planRequestsTotal.WithLabelValues("error").Inc()
		s.metrics.planDurationSeconds.WithLabelValues("error").Observe(elapsed.Seconds())
		log := logging.FromContext(r.Context())
		log.Error("improvement plan failed",
			slog.String("stage", a.Stage),
			slog.Any("error", err),
		)
		http.Error(w, "plan generation failed", http.StatusBadGateway)
		return
	}

	s.metrics.planRequestsTotal.WithLabelValues(plan.Source).Inc()
	s.metrics.planDurationSeconds.WithLabelValues(plan.Source).Observe(elapsed.Seconds())
	writeJSON(w, http.StatusOK, plan)
}

// handleCategoryReadup handles POST /api/category-readup. Readups are always
// model-generated, so a missing planner or model yields 503.
func (s *Server) handleCategoryReadup(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		http.Error(w, "category readups are not configured", http.StatusServiceUnavailable)
		return
	}

	var req readupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Category == "" {
		http.Error(w, "category is required", http.StatusBadRequest)
		return
	}

	readup, err := s.planner.CategoryReadup(r.Context(), req.Category, req.Stage)
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error("category readup failed",
			slog.String("category", req.Category),
			slog.Any("error", err),
		)
		http.Error(w, "readup generation failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, readupResponse{Category: req.Category, Readup: readup})
}

// handlePlanStats handles GET /api/pregenerated/stats with coverage of the
// pre-generated plan store.
func (s *Server) handlePlanStats(w http.ResponseWriter, r *http.Request) {
	if s.plans == nil {
		http.Error(w, "pre-generated plans are not configured", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.plans.Stats(r.Context())
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error("plan store stats failed", slog.Any("error", err))
		http.Error(w, "plan store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
