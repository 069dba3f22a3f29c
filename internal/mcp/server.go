package mcp

import (
	"context"
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"claimstore_capture": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"claimstore_redeem": {
		def:     redeemToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRedeem },
	},
	"claimstore_inventory": {
		def:     inventoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInventory },
	},
	"claimstore_jobs": {
		def:     jobsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJobs },
	},
	"claimstore_catalog": {
		def:     catalogToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCatalog },
	},
	"claimstore_config_get": {
		def:     configGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfigGet },
	},
	"claimstore_config_set": {
		def:     configSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfigSet },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the claim store tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, store *claimstore.Store, provider config.Provider, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"claimstore",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, store, provider)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, store *claimstore.Store, provider config.Provider, cfg *config.Config, version string) error {
	s := NewServer(db, store, provider, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
