package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/healthbridge/internal/models"
	"github.com/claude/healthbridge/internal/timeseries"
)

// --- Tool definitions ---

var toolGetHealthData = mcp.NewTool("get_health_data",
	mcp.WithDescription("Retrieve stored health data for a user. Returns the newest record per category and calendar day, ordered newest day first."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("User UUID")),
	mcp.WithString("provider", mcp.Description("Filter by provider"), mcp.Enum("APPLE_HEALTH", "HEALTH_CONNECT")),
	mcp.WithString("category", mcp.Description("Filter by category"), mcp.Enum("daily", "body", "sleep")),
	mcp.WithString("start_date", mcp.Description("Earliest record date (YYYY-MM-DD)")),
	mcp.WithString("end_date", mcp.Description("Latest record date (YYYY-MM-DD)")),
)

var toolGetLatestHealthData = mcp.NewTool("get_latest_health_data",
	mcp.WithDescription("Retrieve the single most recent record per category (daily, body, sleep) for a user."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("User UUID")),
	mcp.WithString("provider", mcp.Description("Filter by provider"), mcp.Enum("APPLE_HEALTH", "HEALTH_CONNECT")),
)

var toolListDeviceConnections = mcp.NewTool("list_device_connections",
	mcp.WithDescription("List the user's currently connected health data providers with connection timestamps and last sync time."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("User UUID")),
)

// --- Tool handlers ---

func (h *handlers) getHealthData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, errMsg := toolFilter(req)
	if errMsg != "" {
		return mcp.NewToolResultError(errMsg), nil
	}

	records, err := h.ds.Records(ctx, filter)
	if err != nil {
		h.log.Error("mcp get_health_data", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(records)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getLatestHealthData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, errMsg := toolFilter(req)
	if errMsg != "" {
		return mcp.NewToolResultError(errMsg), nil
	}

	records, err := h.ds.Records(ctx, filter)
	if err != nil {
		h.log.Error("mcp get_latest_health_data", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(timeseries.Latest(records))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listDeviceConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return mcp.NewToolResultError("user_id must be a UUID"), nil
	}

	conns, err := h.ds.ActiveConnections(ctx, uid)
	if err != nil {
		h.log.Error("mcp list_device_connections", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(conns)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// toolFilter builds a QueryFilter from the shared tool parameters. It
// returns a non-empty error message on invalid input.
func toolFilter(req mcp.CallToolRequest) (timeseries.QueryFilter, string) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return timeseries.QueryFilter{}, "user_id parameter is required"
	}
	filter := timeseries.QueryFilter{UserID: userID}

	if v := req.GetString("provider", ""); v != "" {
		p := models.ProviderKind(v)
		if !p.Valid() {
			return filter, "unsupported provider: " + v
		}
		filter.ProviderType = p
	}
	if v := req.GetString("category", ""); v != "" {
		c := models.Category(v)
		if !c.Valid() {
			return filter, "unknown category: " + v
		}
		filter.Category = c
	}
	if v := req.GetString("start_date", ""); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, "start_date must be YYYY-MM-DD"
		}
		filter.StartDate = &t
	}
	if v := req.GetString("end_date", ""); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, "end_date must be YYYY-MM-DD"
		}
		filter.EndDate = &t
	}
	return filter, ""
}
