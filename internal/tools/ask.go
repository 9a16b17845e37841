package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// AskInput defines the input schema for the ask_episode tool.
type AskInput struct {
	TitleID       string   `json:"title_id" jsonschema:"Title the episode belongs to"`
	EpisodeID     string   `json:"episode_id" jsonschema:"Episode being watched"`
	CurrentTimeMs int64    `json:"current_time_ms" jsonschema:"Playback position in milliseconds; nothing later is used"`
	Question      string   `json:"question" jsonschema:"The viewer's question"`
	CharacterIDs  []string `json:"character_ids,omitempty" jsonschema:"Optional characters the question is about"`
	RelationID    string   `json:"relation_id,omitempty" jsonschema:"Optional relation the question is about"`
	Language      string   `json:"language,omitempty" jsonschema:"Answer language tag such as ko or en, default ko"`
	ResponseStyle string   `json:"response_style,omitempty" jsonschema:"FRIEND, ASSISTANT or CRITIC, default FRIEND"`
}

// NewAskHandler creates the ask_episode tool handler. Answers are not
// persisted to chat history.
func NewAskHandler(deps *Dependencies) mcp.ToolHandlerFor[AskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, any, error) {
		qa := models.QARequest{
			TitleID:       input.TitleID,
			EpisodeID:     input.EpisodeID,
			CurrentTimeMs: input.CurrentTimeMs,
			Question:      input.Question,
			Language:      models.Language(input.Language),
			ResponseStyle: models.ResponseStyle(input.ResponseStyle),
		}
		if len(input.CharacterIDs) > 0 || input.RelationID != "" {
			qa.Focus = &models.Focus{CharacterIDs: input.CharacterIDs, RelationID: input.RelationID}
		}

		resp, err := deps.QA.Ask(ctx, qa)
		if err != nil {
			return serviceError(deps, "Ask", err), nil, nil
		}
		deps.Logger.Info("ask_episode completed",
			"episode_id", input.EpisodeID,
			"current_time_ms", input.CurrentTimeMs,
			"evidences", len(resp.Evidences))
		return JSONResult(resp), nil, nil
	}
}
