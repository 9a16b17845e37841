// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/spoilerguard/internal/service"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	QA     *service.QAService
	Graph  *service.GraphService
	Recap  *service.RecapService
	Entity *service.EntityService
	Logger *slog.Logger
}
