package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_episode",
		Description: "Answer a question about an episode using only dialogue at or before the viewer's playback position",
	}, NewAskHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_relationship_graph",
		Description: "Return the character relationship graph visible at the playback position, with evidence per edge",
	}, NewGraphHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recap_episode",
		Description: "Summarize the story so far without revealing anything past the playback position",
	}, NewRecapHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_entity",
		Description: "Map a free-text mention such as a nickname to candidate characters",
	}, NewResolveHandler(deps))
}
