package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/c360studio/coach/analysis"
	"github.com/c360studio/coach/rubric"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string        `json:"error"`
	Kind  analysis.Kind `json:"kind,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Kind:  analysis.KindOf(err),
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// analyze runs one analysis request.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	report, err := s.analyzer.Analyze(r.Context(), &req)
	if err != nil {
		// Only request-scoped validation errors surface here; everything
		// dimension-scoped lands inside the report.
		status := http.StatusInternalServerError
		if analysis.IsKind(err, analysis.KindValidation) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// listRubrics returns every loaded rubric version.
func (s *Server) listRubrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.rubrics.List())
}

// cacheStats returns the cache counter snapshot.
func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Stats())
}

// cacheReset zeroes the cache counters.
func (s *Server) cacheReset(w http.ResponseWriter, _ *http.Request) {
	s.store.ResetStats()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// invalidateRequest scopes an operator cache purge.
type invalidateRequest struct {
	Role      string `json:"role"`
	Dimension string `json:"dimension"`
	Version   string `json:"version,omitempty"`
}

// cacheInvalidate purges cached results for a (role, dimension) pair,
// optionally scoped to one rubric version.
func (s *Server) cacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	role := rubric.ParseRole(req.Role)
	if role == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("unknown role"))
		return
	}
	dim := rubric.ParseDimension(req.Dimension)
	if dim == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("unknown dimension"))
		return
	}

	count, err := s.store.InvalidateDimension(r.Context(), role, dim, req.Version)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"invalidated": count})
}
