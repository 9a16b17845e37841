package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPName is the implementation name announced to MCP clients.
const MCPName = "spoilerguard"

// MCP wraps the MCP server with lifecycle management. The same server backs
// the stdio binary and the /mcp HTTP endpoint.
type MCP struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// NewMCP creates a new MCP server with the given version and logger.
func NewMCP(version string, logger *slog.Logger) *MCP {
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{
		Name:    MCPName,
		Version: version,
	}

	return &MCP{
		mcp:    mcp.NewServer(impl, nil),
		logger: logger,
	}
}

// Run serves on stdio and blocks until disconnect or context cancellation.
func (s *MCP) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *MCP) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup adds the logging middleware.
func (s *MCP) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
}

// Handler serves the MCP server over streamable HTTP.
func (s *MCP) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}
