package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// ResolveInput defines the input schema for the resolve_entity tool.
type ResolveInput struct {
	TitleID       string `json:"title_id" jsonschema:"Title the characters belong to"`
	EpisodeID     string `json:"episode_id" jsonschema:"Episode used for the speaker fallback"`
	CurrentTimeMs int64  `json:"current_time_ms" jsonschema:"Playback position in milliseconds"`
	MentionText   string `json:"mention_text" jsonschema:"The name, nickname or title to resolve"`
}

// NewResolveHandler creates the resolve_entity tool handler.
func NewResolveHandler(deps *Dependencies) mcp.ToolHandlerFor[ResolveInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, any, error) {
		if input.MentionText == "" {
			return ErrorResult("mention_text cannot be empty", "Provide the name or nickname to resolve"), nil, nil
		}
		resp, err := deps.Entity.Resolve(ctx, models.ResolveEntityRequest{
			TitleID:       input.TitleID,
			EpisodeID:     input.EpisodeID,
			CurrentTimeMs: input.CurrentTimeMs,
			MentionText:   input.MentionText,
		})
		if err != nil {
			return serviceError(deps, "Resolve", err), nil, nil
		}
		return JSONResult(resp), nil, nil
	}
}
