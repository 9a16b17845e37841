package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// RecapInput defines the input schema for the recap_episode tool.
type RecapInput struct {
	TitleID       string `json:"title_id" jsonschema:"Title the episode belongs to"`
	EpisodeID     string `json:"episode_id" jsonschema:"Episode being watched"`
	CurrentTimeMs int64  `json:"current_time_ms" jsonschema:"Playback position in milliseconds"`
	Preset        string `json:"preset,omitempty" jsonschema:"TWENTY_SEC, ONE_MIN or THREE_MIN, default ONE_MIN"`
	Mode          string `json:"mode,omitempty" jsonschema:"GENERAL, CHARACTER_FOCUSED or CONFLICT_FOCUSED, default GENERAL"`
	Language      string `json:"language,omitempty" jsonschema:"Answer language tag such as ko or en"`
}

// NewRecapHandler creates the recap_episode tool handler.
func NewRecapHandler(deps *Dependencies) mcp.ToolHandlerFor[RecapInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RecapInput) (*mcp.CallToolResult, any, error) {
		resp, err := deps.Recap.Recap(ctx, models.RecapRequest{
			TitleID:       input.TitleID,
			EpisodeID:     input.EpisodeID,
			CurrentTimeMs: input.CurrentTimeMs,
			Preset:        models.RecapPreset(input.Preset),
			Mode:          models.RecapMode(input.Mode),
			Language:      models.Language(input.Language),
		})
		if err != nil {
			return serviceError(deps, "Recap", err), nil, nil
		}
		return JSONResult(resp), nil, nil
	}
}
