package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/service"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	storeStatus := "ok"
	if err := s.app.Ping(ctx); err != nil {
		s.logger.Warn("store ping failed", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
		storeStatus = err.Error()
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"store":  storeStatus,
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"model":  s.app.QA.ModelName(),
	})
}

// queryInt64 reads an optional integer query parameter.
func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrInvalid, key)
	}
	return v, nil
}

// requireInt64 reads a mandatory integer query parameter.
func requireInt64(r *http.Request, key string) (int64, error) {
	if r.URL.Query().Get(key) == "" {
		return 0, fmt.Errorf("%w: %s is required", service.ErrInvalid, key)
	}
	return queryInt64(r, key, 0)
}

// =============================================================================
// QA
// =============================================================================

func (s *Server) qaRequest(r *http.Request) (models.QARequest, error) {
	var req models.QARequest
	if err := decodeBody(r, &req); err != nil {
		return req, err
	}
	if user := r.Header.Get(UserHeader); user != "" {
		req.UserID = user
	}
	return req, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, err := s.qaRequest(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.QA.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	resp, err := s.app.QA.History(r.Context(), q.Get("title_id"), q.Get("episode_id"), r.Header.Get(UserHeader), int(limit))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.app.QA.ClearHistory(r.Context(), q.Get("title_id"), q.Get("episode_id"), r.Header.Get(UserHeader))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// GRAPH & ENTITIES
// =============================================================================

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var req models.GraphRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.Graph.Graph(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelation(w http.ResponseWriter, r *http.Request) {
	cutoff, err := requireInt64(r, "current_time_ms")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.Graph.Relation(r.Context(), chi.URLParam(r, "id"), cutoff)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCharacterCard(w http.ResponseWriter, r *http.Request) {
	cutoff, err := requireInt64(r, "current_time_ms")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.Entity.Card(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("episode_id"), cutoff)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveEntity(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveEntityRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.Entity.Resolve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request) {
	var req models.RecapRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.Recap.Recap(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// INDEXING
// =============================================================================

func (s *Server) handleIndexEpisode(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Jobs.StartIndex(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.app.Jobs.ListJobs()
	out := make([]service.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Jobs.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleIngestLines(w http.ResponseWriter, r *http.Request) {
	var req models.IngestLinesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp, err := s.app.Ingest.IngestLines(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Metrics.Snapshot())
}
