package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/recall/internal/model"
	"github.com/rcliao/recall/internal/store"
)

// SearchTool handles the memory_search MCP tool.
type SearchTool struct {
	store       store.Store
	defaultUser string
	defaultTopK int
	now         func() time.Time
}

// NewSearchTool creates a SearchTool. A non-positive defaultTopK falls back
// to store.DefaultTopK. now should be the store's clock; nil means time.Now.
func NewSearchTool(s store.Store, defaultUser string, defaultTopK int, now func() time.Time) *SearchTool {
	if defaultTopK <= 0 {
		defaultTopK = store.DefaultTopK
	}
	if now == nil {
		now = time.Now
	}
	return &SearchTool{store: s, defaultUser: defaultUser, defaultTopK: defaultTopK, now: now}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search what you remember about the user. Supports keywords, quoted phrases and OR "+
				"when full-text search is available.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Owner whose memories to search"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("top_k",
			mcp.Description(fmt.Sprintf("Max results (default: %d, max: %d)", t.defaultTopK, store.MaxTopK)),
		),
		mcp.WithArray("tag_any",
			mcp.Description("Only return memories carrying at least one of these tags"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("include_expired",
			mcp.Description("Include memories past their expiry (default: false)"),
		),
	)
}

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := userArg(req, t.defaultUser)
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	includeExpired := boolArg(req, "include_expired", false)

	results, err := t.store.Search(ctx, store.SearchParams{
		UserID:         userID,
		Query:          req.GetString("query", ""),
		TopK:           intArg(req, "top_k", t.defaultTopK),
		TagAny:         stringSliceArg(req, "tag_any"),
		IncludeExpired: includeExpired,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	return mcp.NewToolResultText(formatMemories(results, includeExpired, t.now())), nil
}

// formatMemories renders results as a numbered list. Expired memories are
// only labelled as such when the caller asked for them.
func formatMemories(results []model.Memory, includeExpired bool, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(results))

	for i, m := range results {
		fmt.Fprintf(&b, "%d. [ID: %d] %s\n", i+1, m.ID, m.Text)
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "   tags: %s\n", strings.Join(m.Tags, ", "))
		}
		fmt.Fprintf(&b, "   saved: %s", m.CreatedAt.Format(model.TimeLayout))
		if m.ExpiresAt != nil {
			label := "expires"
			if includeExpired && m.Expired(now) {
				label = "expired"
			}
			fmt.Fprintf(&b, " | %s: %s", label, m.ExpiresAt.Format(model.TimeLayout))
		}
		b.WriteString("\n")
	}
	return b.String()
}
