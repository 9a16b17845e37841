package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/service"
)

const wsWriteWait = 10 * time.Second

// handleAskSSE streams a QA answer as server-sent events. Headers are only
// committed with the first event so validation failures still get a JSON
// error status.
func (s *Server) handleAskSSE(w http.ResponseWriter, r *http.Request) {
	req, err := s.qaRequest(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot flush")
		return
	}

	started := false
	err = s.app.QA.AskStream(r.Context(), req, func(e service.Event) error {
		if !started {
			h := w.Header()
			h.Set("Content-Type", "text/event-stream")
			h.Set("Cache-Control", "no-cache")
			h.Set("Connection", "keep-alive")
			h.Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err == nil {
		return
	}
	if !started {
		s.writeServiceError(w, r, err)
		return
	}
	if r.Context().Err() == nil {
		s.logger.Warn("sse stream aborted", "episode_id", req.EpisodeID, "error", err)
	}
}

// handleAskWebsocket streams a QA answer over a websocket. The first client
// message is the QARequest; every event is sent as a JSON text frame and the
// connection is closed after done or error.
func (s *Server) handleAskWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req models.QARequest
	if err := conn.ReadJSON(&req); err != nil {
		s.writeWSEvent(conn, service.Event{Type: service.EventError, Error: "invalid request: " + err.Error()})
		return
	}
	if user := r.Header.Get(UserHeader); user != "" {
		req.UserID = user
	}

	// A client disconnect surfaces as a read error; cancel the pipeline then.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	err = s.app.QA.AskStream(ctx, req, func(e service.Event) error {
		return s.writeWSEvent(conn, e)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.writeWSEvent(conn, service.Event{Type: service.EventError, Error: err.Error()})
		}
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func (s *Server) writeWSEvent(conn *websocket.Conn, e service.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(e)
}
