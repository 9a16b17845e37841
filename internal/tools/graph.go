package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/spoilerguard/internal/models"
)

// GraphInput defines the input schema for the get_relationship_graph tool.
type GraphInput struct {
	TitleID           string   `json:"title_id" jsonschema:"Title to build the graph for"`
	EpisodeID         string   `json:"episode_id" jsonschema:"Episode being watched; edge evidence comes from it"`
	CurrentTimeMs     int64    `json:"current_time_ms" jsonschema:"Playback position in milliseconds"`
	FocusCharacterID  string   `json:"focus_character_id,omitempty" jsonschema:"Only edges touching this character"`
	RelationTypes     []string `json:"relation_types,omitempty" jsonschema:"Only these kinds, e.g. ALLY, MISTRUST, FAMILY"`
	IncludeHypothesis *bool    `json:"include_hypothesis,omitempty" jsonschema:"Include hypothesis edges, default true"`
}

// NewGraphHandler creates the get_relationship_graph tool handler.
func NewGraphHandler(deps *Dependencies) mcp.ToolHandlerFor[GraphInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GraphInput) (*mcp.CallToolResult, any, error) {
		var kinds []models.RelationKind
		for _, k := range input.RelationTypes {
			kinds = append(kinds, models.ParseRelationKind(k))
		}

		resp, err := deps.Graph.Graph(ctx, models.GraphRequest{
			TitleID:           input.TitleID,
			EpisodeID:         input.EpisodeID,
			CurrentTimeMs:     input.CurrentTimeMs,
			FocusCharacterID:  input.FocusCharacterID,
			RelationKinds:     kinds,
			IncludeHypothesis: input.IncludeHypothesis,
		})
		if err != nil {
			return serviceError(deps, "Graph", err), nil, nil
		}
		deps.Logger.Info("get_relationship_graph completed",
			"title_id", input.TitleID,
			"current_time_ms", input.CurrentTimeMs,
			"nodes", len(resp.Nodes),
			"edges", len(resp.Edges))
		return JSONResult(resp), nil, nil
	}
}
