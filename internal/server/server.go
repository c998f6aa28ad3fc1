// Package server wires the memory tools into an MCP server instance.
// No business logic lives here, only wiring.
package server

import (
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rcliao/recall/internal/store"
	"github.com/rcliao/recall/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options carries the per-call defaults the tools fall back to.
type Options struct {
	DefaultUser string
	DefaultTopK int
	// Now is the store's clock, used to label expired search results.
	// Nil means time.Now.
	Now func() time.Time
}

// New creates the MCP server with every memory tool registered.
func New(s store.Store, opts Options) *server.MCPServer {
	srv := server.NewMCPServer(
		"recall",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	add := tools.NewAddTool(s, opts.DefaultUser)
	srv.AddTool(add.Definition(), add.Handle)

	search := tools.NewSearchTool(s, opts.DefaultUser, opts.DefaultTopK, opts.Now)
	srv.AddTool(search.Definition(), search.Handle)

	del := tools.NewDeleteTool(s, opts.DefaultUser)
	srv.AddTool(del.Definition(), del.Handle)

	purge := tools.NewPurgeTool(s)
	srv.AddTool(purge.Definition(), purge.Handle)

	return srv
}

const instructions = `recall keeps short facts about each user.

- Call memory_search before answering questions that may depend on what the user told you earlier.
- Call memory_add when the user shares a durable fact or preference. Keep each memory to one fact.
- Use ttl_days for facts that go stale (plans, temporary situations).
- Call memory_delete when the user asks you to forget something.`
