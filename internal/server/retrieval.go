package server

import (
	"log/slog"
	"net/http"

	"github.com/uxlens/uxlens-go/internal/logging"
	"github.com/uxlens/uxlens-go/internal/rag"
)

// handleResources handles POST /api/rag/resources. It returns the ranked
// learning resources for a career stage and category score breakdown.
// Retrieval failures degrade to an empty list, so this endpoint never
// returns 5xx for store trouble.
func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	var req resourcesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stage == "" {
		http.Error(w, "stage is required", http.StatusBadRequest)
		return
	}

	resources := s.retriever.RetrieveResourcesForUser(r.Context(), req.Stage, req.Categories, req.TopK)
	writeJSON(w, http.StatusOK, resourcesResponse{Resources: resources})
}

// handleSearch handles POST /api/rag/search for direct similarity queries.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	filter := rag.SearchFilter{
		Category:     req.Category,
		Difficulty:   req.Difficulty,
		ResourceType: req.ResourceType,
	}
	results := s.retriever.SemanticSearch(r.Context(), req.Query, filter, req.TopK)
	writeJSON(w, http.StatusOK, resourcesResponse{Resources: results})
}

// handleLearningPath handles POST /api/rag/learning-path. It assembles the
// two-step progression for the user's weakest categories.
func (s *Server) handleLearningPath(w http.ResponseWriter, r *http.Request) {
	var req learningPathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stage == "" {
		http.Error(w, "stage is required", http.StatusBadRequest)
		return
	}

	path := s.retriever.GenerateLearningPath(r.Context(), req.Categories, req.Stage)
	writeJSON(w, http.StatusOK, path)
}

// handleLearningPaths handles POST /api/rag/learning-paths. It returns
// step-by-step resources per named category.
func (s *Server) handleLearningPaths(w http.ResponseWriter, r *http.Request) {
	var req learningPathsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Categories) == 0 {
		http.Error(w, "categories is required", http.StatusBadRequest)
		return
	}

	paths := s.retriever.RetrieveLearningPaths(r.Context(), req.Categories)
	writeJSON(w, http.StatusOK, learningPathsResponse{Paths: paths})
}

// handleCompetencies handles GET /api/rag/competencies?stage=<stage>.
func (s *Server) handleCompetencies(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage == "" {
		http.Error(w, "stage query parameter is required", http.StatusBadRequest)
		return
	}

	resources := s.retriever.RetrieveStageCompetencies(r.Context(), stage)
	writeJSON(w, http.StatusOK, resourcesResponse{Resources: resources})
}

// handleSkillRelationships handles POST /api/rag/skill-relationships. It
// returns content bridging the user's weak and strong categories.
func (s *Server) handleSkillRelationships(w http.ResponseWriter, r *http.Request) {
	var req skillRelationshipsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.WeakCategories) == 0 || len(req.StrongCategories) == 0 {
		http.Error(w, "weakCategories and strongCategories are required", http.StatusBadRequest)
		return
	}

	resources := s.retriever.RetrieveSkillRelationships(r.Context(), req.WeakCategories, req.StrongCategories)
	writeJSON(w, http.StatusOK, resourcesResponse{Resources: resources})
}

// handleSocial handles POST /api/rag/social. Results are ranked by engagement
// rather than semantic relevance.
func (s *Server) handleSocial(w http.ResponseWriter, r *http.Request) {
	var req socialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stage == "" {
		http.Error(w, "stage is required", http.StatusBadRequest)
		return
	}

	resources := s.retriever.RetrieveSocialMediaResources(r.Context(), req.Stage, req.Categories, req.ResourceTypes, req.Limit)
	writeJSON(w, http.StatusOK, resourcesResponse{Resources: resources})
}

// handleStoreStats handles GET /api/rag/stats with a collection summary.
func (s *Server) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error("store stats failed", slog.Any("error", err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
