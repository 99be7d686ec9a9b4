// Package mcp exposes the stored health data to model-context-protocol
// clients. Tools are read-only; writes stay on the REST surface.
package mcp

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/healthbridge/internal/models"
	"github.com/claude/healthbridge/internal/timeseries"
)

// DataSource abstracts the data layer for MCP tools.
type DataSource interface {
	Records(ctx context.Context, f timeseries.QueryFilter) ([]models.HealthDataRecord, error)
	ActiveConnections(ctx context.Context, userID uuid.UUID) ([]models.DeviceConnection, error)
}

// New creates an MCP server with all tools registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("HealthBridge", version,
		server.WithToolCapabilities(false),
		server.WithInstructions("HealthBridge health data server. Query canonicalized daily, body, and sleep records per user, and list connected devices. Reads return the newest record per category and calendar day."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetHealthData, Handler: h.getHealthData},
		server.ServerTool{Tool: toolGetLatestHealthData, Handler: h.getLatestHealthData},
		server.ServerTool{Tool: toolListDeviceConnections, Handler: h.listDeviceConnections},
	)

	return s
}

// handlers holds dependencies for MCP tool handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}
