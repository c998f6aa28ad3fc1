package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/recall/internal/store"
)

// DeleteTool handles the memory_delete MCP tool.
type DeleteTool struct {
	store       store.Store
	defaultUser string
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(s store.Store, defaultUser string) *DeleteTool {
	return &DeleteTool{store: s, defaultUser: defaultUser}
}

// Definition returns the MCP tool definition for memory_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_delete",
		mcp.WithDescription(
			"Forget memories by ID. IDs owned by another user are ignored.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Owner of the memories"),
		),
		mcp.WithArray("ids",
			mcp.Required(),
			mcp.Description("Memory IDs as returned by memory_add or memory_search"),
			mcp.Items(map[string]any{"type": "integer"}),
		),
	)
}

// Handle processes the memory_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := userArg(req, t.defaultUser)
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	n, err := t.store.Delete(ctx, userID, int64SliceArg(req, "ids"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d memories", n)), nil
}

// PurgeTool handles the memory_purge MCP tool.
type PurgeTool struct {
	store store.Store
}

// NewPurgeTool creates a PurgeTool.
func NewPurgeTool(s store.Store) *PurgeTool {
	return &PurgeTool{store: s}
}

// Definition returns the MCP tool definition for memory_purge.
func (t *PurgeTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_purge",
		mcp.WithDescription(
			"Permanently remove deleted and expired memories for all users.",
		),
	)
}

// Handle processes the memory_purge tool call.
func (t *PurgeTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deleted, indexed, err := t.store.Purge(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("purge failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Purged %d memories (index entries: %d)", deleted, indexed)), nil
}
