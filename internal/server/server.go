// Package server exposes the guarded services over REST, SSE, websocket and
// MCP. Every read takes the caller's playback position and never returns
// content past it.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/spoilerguard/internal/app"
	"github.com/raphaelgruber/spoilerguard/internal/service"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

const defaultTimeout = 60 * time.Second

// UserHeader carries the caller's user id for chat history.
const UserHeader = "X-User-ID"

// Server holds the dependencies of the HTTP API.
type Server struct {
	router    *chi.Mux
	app       *app.App
	mcp       http.Handler
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithMCPHandler mounts an MCP handler at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithLogger sets the request logger. Defaults to the app logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds a Server over the app's services.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: a.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Routes returns the chi router with all middleware and routes. Streaming
// routes are registered without the request timeout.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/qa/stream", s.handleAskSSE)
		r.Get("/qa/ws", s.handleAskWebsocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))

			r.Post("/qa", s.handleAsk)
			r.Get("/qa/history", s.handleHistory)
			r.Delete("/qa/history", s.handleClearHistory)

			r.Post("/graph", s.handleGraph)
			r.Get("/relations/{id}", s.handleRelation)
			r.Get("/characters/{id}/card", s.handleCharacterCard)
			r.Post("/entities/resolve", s.handleResolveEntity)
			r.Post("/recap", s.handleRecap)

			r.Post("/index/episodes/{id}", s.handleIndexEpisode)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
			r.Post("/ingest/episodes/{id}/lines", s.handleIngestLines)

			r.Get("/stats", s.handleStats)
		})
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeServiceError maps service and store errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", service.ErrInvalid, err)
	}
	return nil
}
