package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/spoilerguard/internal/app"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/server"
	"github.com/raphaelgruber/spoilerguard/internal/service"
	"github.com/raphaelgruber/spoilerguard/internal/sqlite"
	"github.com/raphaelgruber/spoilerguard/internal/store/memstore"
	"github.com/raphaelgruber/spoilerguard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()
	st := memstore.New()
	storetest.Seed(t, st)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := app.NewWithStore(st, config.Config{IndexConcurrency: 1}, logger)

	mcpSrv := server.NewMCP("test", logger)
	mcpSrv.Setup()
	srv := httptest.NewServer(server.New(a, server.WithMCPHandler(mcpSrv.Handler())).Routes())
	t.Cleanup(srv.Close)
	return srv, a
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, models.ModelRuleBased, body["model"])
}

func TestHealthReportsStoreFailure(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, sqlite.MemoryPath)
	require.NoError(t, err)

	a := app.NewWithStore(st, config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(server.New(a).Routes())
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, st.Close(ctx))
	resp = doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["store"], "sqlite")
}

func TestAskNeverReturnsFutureLines(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/qa", models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 2500, Question: "Where was Joon last night?",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[models.QAResponse](t, resp)
	assert.True(t, got.Meta.SpoilerGuardApplied)
	assert.Equal(t, models.ModelRuleBased, got.Meta.Model)
	for _, ev := range got.Evidences {
		for _, l := range ev.Lines {
			assert.LessOrEqual(t, l.StartMs, int64(2500), "line %s is past the cutoff", l.LineID)
		}
	}
}

func TestAskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing question", models.QARequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 10}},
		{"negative time", models.QARequest{TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: -1, Question: "who?"}},
		{"malformed body", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/qa", tt.body, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			assert.Equal(t, "invalid_request", body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	user := map[string]string{server.UserHeader: "viewer-1"}
	historyURL := srv.URL + "/api/qa/history?title_id=t1&episode_id=e1"

	anon := decode[models.ChatHistoryResponse](t, doJSON(t, http.MethodGet, historyURL, nil, nil))
	assert.Empty(t, anon.Messages)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/qa", models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500, Question: "Why does Mina doubt Joon?",
	}, user)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	history := decode[models.ChatHistoryResponse](t, doJSON(t, http.MethodGet, historyURL, nil, user))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, models.RoleUser, history.Messages[0].Role)
	assert.Equal(t, "Why does Mina doubt Joon?", history.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, history.Messages[1].Role)
	assert.NotEmpty(t, history.SessionID)

	bad := doJSON(t, http.MethodGet, historyURL+"&limit=301", nil, user)
	assert.Equal(t, http.StatusUnprocessableEntity, bad.StatusCode)

	cleared := decode[models.ChatHistoryClearResponse](t, doJSON(t, http.MethodDelete, historyURL, nil, user))
	assert.Equal(t, 2, cleared.DeletedMessages)
	assert.Equal(t, 1, cleared.DeletedSessions)
}

func TestGraphRespectsCutoff(t *testing.T) {
	srv, _ := newTestServer(t)

	edgeIDs := func(cutoff int64) []string {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/graph", models.GraphRequest{
			TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: cutoff,
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		g := decode[models.GraphResponse](t, resp)
		assert.True(t, g.Meta.SpoilerGuardApplied)
		var ids []string
		for _, e := range g.Edges {
			assert.LessOrEqual(t, e.ValidFromTimeMs, cutoff)
			ids = append(ids, e.ID)
		}
		return ids
	}

	assert.NotContains(t, edgeIDs(1200), "r1")
	assert.Contains(t, edgeIDs(2000), "r1")
	assert.NotContains(t, edgeIDs(3000), "r2")
}

func TestRelationDetail(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/relations/r1?current_time_ms=2500", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[models.RelationDetailResponse](t, resp)
	assert.Equal(t, "r1", detail.Relation.ID)
	for _, ev := range detail.Relation.Evidences {
		assert.LessOrEqual(t, ev.RepresentativeTimeMs, int64(2500))
	}

	notYet := doJSON(t, http.MethodGet, srv.URL+"/api/relations/r1?current_time_ms=1000", nil, nil)
	assert.Equal(t, http.StatusNotFound, notYet.StatusCode)

	missingTime := doJSON(t, http.MethodGet, srv.URL+"/api/relations/r1", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, missingTime.StatusCode)

	unknown := doJSON(t, http.MethodGet, srv.URL+"/api/relations/zz?current_time_ms=2500", nil, nil)
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
}

func TestCharacterCard(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/characters/c1/card?episode_id=e1&current_time_ms=3500", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	card := decode[models.CharacterCardResponse](t, resp)
	assert.Equal(t, "Mina", card.Character.CanonicalName)
	assert.True(t, card.Meta.SpoilerGuardApplied)

	unknown := doJSON(t, http.MethodGet, srv.URL+"/api/characters/c9/card?episode_id=e1&current_time_ms=3500", nil, nil)
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
}

func TestResolveEntityByAlias(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/entities/resolve", models.ResolveEntityRequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500, MentionText: "The Boy",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.ResolveEntityResponse](t, resp)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "c3", got.Candidates[0].CharacterID)
	assert.Equal(t, "c2", got.Candidates[1].CharacterID)
}

func TestRecapRejectsUnknownPreset(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/recap", models.RecapRequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500, Preset: "FOREVER",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	ok := doJSON(t, http.MethodPost, srv.URL+"/api/recap", models.RecapRequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500,
	}, nil)
	require.Equal(t, http.StatusOK, ok.StatusCode)
	recap := decode[models.RecapResponse](t, ok)
	assert.LessOrEqual(t, len(recap.Recap.Bullets), 3)
}

func TestIndexJobLifecycle(t *testing.T) {
	srv, a := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/index/episodes/e1", nil, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := decode[service.Job](t, resp)
	require.NotEmpty(t, job.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := a.Jobs.Wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, service.JobStatusCompleted, done.Status)

	got := decode[service.Job](t, doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+job.ID, nil, nil))
	assert.Equal(t, service.JobStatusCompleted, got.Status)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "e1", got.Results[0].EpisodeID)

	list := decode[map[string][]service.Job](t, doJSON(t, http.MethodGet, srv.URL+"/api/jobs", nil, nil))
	assert.Len(t, list["jobs"], 1)

	missing := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestIngestLines(t *testing.T) {
	srv, a := newTestServer(t)

	body := models.IngestLinesRequest{Lines: []models.DialogueLineInput{
		{StartMs: 4000, EndMs: 4500, SpeakerText: "Joon", Text: "I was never at the harbor."},
	}}

	unknown := doJSON(t, http.MethodPost, srv.URL+"/api/ingest/episodes/e9/lines", body, nil)
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/ingest/episodes/e1/lines", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	got := decode[models.IngestLinesResponse](t, resp)
	assert.Equal(t, 1, got.InsertedCount)
	assert.Equal(t, 1, got.QueuedIndexJobs)
	require.NotEmpty(t, got.JobID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.Jobs.Wait(ctx, got.JobID)
	require.NoError(t, err)

	backwards := doJSON(t, http.MethodPost, srv.URL+"/api/ingest/episodes/e1/lines", models.IngestLinesRequest{
		Lines: []models.DialogueLineInput{{StartMs: 10, EndMs: 5, Text: "x"}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, backwards.StatusCode)
}

func TestAskSSE(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/qa/stream", models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500, Question: "What did the captain say?",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var types []service.EventType
	var last service.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var e service.Event
			require.NoError(t, json.Unmarshal([]byte(data), &e))
			types = append(types, e.Type)
			last = e
		}
	}
	require.NoError(t, scanner.Err())

	require.NotEmpty(t, types)
	assert.Equal(t, service.EventStatus, types[0])
	assert.Equal(t, service.EventDone, last.Type)
	require.NotNil(t, last.Response)
	assert.True(t, last.Response.Meta.SpoilerGuardApplied)
	assert.Contains(t, types, service.EventToken)
}

func TestAskSSEInvalidRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/qa/stream", models.QARequest{TitleID: "t1", EpisodeID: "e1"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestAskWebsocket(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/qa/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500, Question: "Who is Captain Lee?",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var events []service.Event
	for {
		var e service.Event
		if err := conn.ReadJSON(&e); err != nil {
			break
		}
		events = append(events, e)
		if e.Type == service.EventDone || e.Type == service.EventError {
			break
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, service.EventStatus, events[0].Type)
	assert.Equal(t, service.EventDone, events[len(events)-1].Type)
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/qa", models.QARequest{
		TitleID: "t1", EpisodeID: "e1", CurrentTimeMs: 3500, Question: "Where was Joon?",
	}, nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Contains(t, body, "uptime_seconds")
	assert.Contains(t, body, "qa")
}
