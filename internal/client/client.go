// Package client provides a REST and websocket client for the spoilerguard
// server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/service"
)

// UserHeader carries the user id for chat history.
const UserHeader = "X-User-ID"

// Client talks to the spoilerguard HTTP API.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses SPOILERGUARD_SERVER_URL or defaults to localhost:8484.
// Timeout can be configured via SPOILERGUARD_CLIENT_TIMEOUT (default 2m).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SPOILERGUARD_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("SPOILERGUARD_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithUser returns a copy of the client that sends userID with every request.
func (c *Client) WithUser(userID string) *Client {
	cp := *c
	cp.userID = userID
	return &cp
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d", e.Status)
	}
	return fmt.Sprintf("server error: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(UserHeader, c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// QA
// =============================================================================

// Ask sends a question and returns the guarded answer.
func (c *Client) Ask(ctx context.Context, req models.QARequest) (*models.QAResponse, error) {
	var resp models.QAResponse
	if err := c.do(ctx, http.MethodPost, "/api/qa", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func historyQuery(titleID, episodeID string) url.Values {
	q := url.Values{}
	q.Set("title_id", titleID)
	q.Set("episode_id", episodeID)
	return q
}

// History lists the caller's chat turns for an episode. Limit 0 uses the
// server default.
func (c *Client) History(ctx context.Context, titleID, episodeID string, limit int) (*models.ChatHistoryResponse, error) {
	q := historyQuery(titleID, episodeID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp models.ChatHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/qa/history?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearHistory deletes the caller's chat turns for an episode.
func (c *Client) ClearHistory(ctx context.Context, titleID, episodeID string) (*models.ChatHistoryClearResponse, error) {
	var resp models.ChatHistoryClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/qa/history?"+historyQuery(titleID, episodeID).Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// GRAPH & ENTITIES
// =============================================================================

// Graph returns the relationship graph at the request's cutoff.
func (c *Client) Graph(ctx context.Context, req models.GraphRequest) (*models.GraphResponse, error) {
	var resp models.GraphResponse
	if err := c.do(ctx, http.MethodPost, "/api/graph", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Relation returns one relation visible at cutoffMs.
func (c *Client) Relation(ctx context.Context, id string, cutoffMs int64) (*models.RelationDetailResponse, error) {
	path := fmt.Sprintf("/api/relations/%s?current_time_ms=%d", url.PathEscape(id), cutoffMs)
	var resp models.RelationDetailResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CharacterCard describes a character as known at cutoffMs.
func (c *Client) CharacterCard(ctx context.Context, characterID, episodeID string, cutoffMs int64) (*models.CharacterCardResponse, error) {
	q := url.Values{}
	q.Set("episode_id", episodeID)
	q.Set("current_time_ms", strconv.FormatInt(cutoffMs, 10))
	path := "/api/characters/" + url.PathEscape(characterID) + "/card?" + q.Encode()

	var resp models.CharacterCardResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveEntity maps a mention to candidate characters.
func (c *Client) ResolveEntity(ctx context.Context, req models.ResolveEntityRequest) (*models.ResolveEntityResponse, error) {
	var resp models.ResolveEntityResponse
	if err := c.do(ctx, http.MethodPost, "/api/entities/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recap summarizes the story up to the request's cutoff.
func (c *Client) Recap(ctx context.Context, req models.RecapRequest) (*models.RecapResponse, error) {
	var resp models.RecapResponse
	if err := c.do(ctx, http.MethodPost, "/api/recap", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// JOBS & INGEST
// =============================================================================

// IndexEpisode starts a background chunk rebuild.
func (c *Client) IndexEpisode(ctx context.Context, episodeID string) (*service.Job, error) {
	var job service.Job
	if err := c.do(ctx, http.MethodPost, "/api/index/episodes/"+url.PathEscape(episodeID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]service.Job, error) {
	var resp struct {
		Jobs []service.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob returns a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*service.Job, error) {
	var job service.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// IngestLines appends subtitle lines to an episode and queues a rebuild.
func (c *Client) IngestLines(ctx context.Context, episodeID string, req models.IngestLinesRequest) (*models.IngestLinesResponse, error) {
	var resp models.IngestLinesResponse
	if err := c.do(ctx, http.MethodPost, "/api/ingest/episodes/"+url.PathEscape(episodeID)+"/lines", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the server's runtime metrics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// AskStream asks over the websocket endpoint and hands every event to
// onEvent in order. It returns the final response, or the streamed error.
// Return an error from onEvent to abort.
func (c *Client) AskStream(ctx context.Context, req models.QARequest, onEvent func(service.Event) error) (*models.QAResponse, error) {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/qa/ws")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	header := http.Header{}
	if c.userID != "" {
		header.Set(UserHeader, c.userID)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var e service.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read event: %w", err)
		}
		if onEvent != nil {
			if err := onEvent(e); err != nil {
				return nil, err
			}
		}
		switch e.Type {
		case service.EventDone:
			return e.Response, nil
		case service.EventError:
			return nil, fmt.Errorf("stream error: %s", e.Error)
		}
	}
}
