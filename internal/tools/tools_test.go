package tools_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/spoilerguard/internal/app"
	"github.com/raphaelgruber/spoilerguard/internal/config"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/store/memstore"
	"github.com/raphaelgruber/spoilerguard/internal/store/storetest"
	"github.com/raphaelgruber/spoilerguard/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect registers all tools over the seeded fixture and returns a client
// session on an in-memory transport.
func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	st := memstore.New()
	storetest.Seed(t, st)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := app.NewWithStore(st, config.Config{}, logger)

	server := mcp.NewServer(&mcp.Implementation{Name: "test-spoilerguard", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, &tools.Dependencies{
		QA:     a.QA,
		Graph:  a.Graph,
		Recap:  a.Recap,
		Entity: a.Entity,
		Logger: logger,
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	go func() { _ = server.Run(ctx, serverTransport) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be TextContent")
	return text.Text
}

func TestToolsRegistered(t *testing.T) {
	session := connect(t)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.ElementsMatch(t, []string{"ask_episode", "get_relationship_graph", "recap_episode", "resolve_entity"}, names)
}

func TestAskEpisodeTool(t *testing.T) {
	session := connect(t)

	result := callTool(t, session, "ask_episode", map[string]any{
		"title_id":        "t1",
		"episode_id":      "e1",
		"current_time_ms": 2500,
		"question":        "Where was Joon last night?",
		"language":        "en",
	})
	require.False(t, result.IsError, textOf(t, result))

	var resp models.QAResponse
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &resp))
	assert.True(t, resp.Meta.SpoilerGuardApplied)
	for _, ev := range resp.Evidences {
		for _, l := range ev.Lines {
			assert.LessOrEqual(t, l.StartMs, int64(2500))
		}
	}
}

func TestAskEpisodeToolValidation(t *testing.T) {
	session := connect(t)

	result := callTool(t, session, "ask_episode", map[string]any{
		"title_id":        "t1",
		"episode_id":      "e1",
		"current_time_ms": 2500,
		"question":        "   ",
	})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "question is required")
}

func TestGraphTool(t *testing.T) {
	session := connect(t)

	result := callTool(t, session, "get_relationship_graph", map[string]any{
		"title_id":           "t1",
		"episode_id":         "e1",
		"current_time_ms":    2000,
		"include_hypothesis": false,
	})
	require.False(t, result.IsError, textOf(t, result))

	var resp models.GraphResponse
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &resp))
	for _, e := range resp.Edges {
		assert.False(t, e.IsHypothesis)
		assert.LessOrEqual(t, e.ValidFromTimeMs, int64(2000))
	}
}

func TestRecapTool(t *testing.T) {
	session := connect(t)

	result := callTool(t, session, "recap_episode", map[string]any{
		"title_id":        "t1",
		"episode_id":      "e1",
		"current_time_ms": 3500,
		"mode":            "CONFLICT_FOCUSED",
	})
	require.False(t, result.IsError, textOf(t, result))

	var resp models.RecapResponse
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &resp))
	assert.True(t, resp.Meta.SpoilerGuardApplied)
	assert.LessOrEqual(t, len(resp.Recap.Bullets), 3)

	bad := callTool(t, session, "recap_episode", map[string]any{
		"title_id":        "t1",
		"episode_id":      "e1",
		"current_time_ms": 3500,
		"preset":          "FOREVER",
	})
	assert.True(t, bad.IsError)
}

func TestResolveEntityTool(t *testing.T) {
	session := connect(t)

	result := callTool(t, session, "resolve_entity", map[string]any{
		"title_id":        "t1",
		"episode_id":      "e1",
		"current_time_ms": 3500,
		"mention_text":    "detective han",
	})
	require.False(t, result.IsError, textOf(t, result))

	var resp models.ResolveEntityResponse
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &resp))
	require.NotEmpty(t, resp.Candidates)
	assert.Equal(t, "c1", resp.Candidates[0].CharacterID)

	empty := callTool(t, session, "resolve_entity", map[string]any{
		"title_id":        "t1",
		"episode_id":      "e1",
		"current_time_ms": 3500,
		"mention_text":    "",
	})
	assert.True(t, empty.IsError)
}
