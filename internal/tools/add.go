package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/recall/internal/store"
)

// AddTool handles the memory_add MCP tool.
type AddTool struct {
	store       store.Store
	defaultUser string
}

// NewAddTool creates an AddTool. defaultUser is used when a call omits user_id.
func NewAddTool(s store.Store, defaultUser string) *AddTool {
	return &AddTool{store: s, defaultUser: defaultUser}
}

// Definition returns the MCP tool definition for memory_add.
func (t *AddTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_add",
		mcp.WithDescription(
			"Remember a short fact about the user. Saving the same text again refreshes it "+
				"instead of creating a duplicate.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Owner of the memory"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The fact to remember, e.g. \"User's dog = Nova\""),
		),
		mcp.WithArray("tags",
			mcp.Description("Optional labels used to filter searches"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("ttl_days",
			mcp.Description("Days until the memory expires (default: never)"),
		),
	)
}

// Handle processes the memory_add tool call.
func (t *AddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := userArg(req, t.defaultUser)
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	id, err := t.store.Add(ctx, store.AddParams{
		UserID:  userID,
		Text:    text,
		Tags:    stringSliceArg(req, "tags"),
		TTLDays: intArg(req, "ttl_days", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save memory: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Memory saved (ID: %d)", id)), nil
}
