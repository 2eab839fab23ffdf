package mcp

import (
	"context"
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
// promptshrink's MCP surface is the single prompt_optimize tool family,
// renamed from moss's fifteen capsule tools per SPEC_FULL.md.
var toolRegistry = map[string]toolEntry{
	"prompt_optimize": {
		def:     optimizeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOptimize },
	},
	"patterns_list": {
		def:     patternsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePatternsList },
	},
	"concepts_list": {
		def:     conceptsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConceptsList },
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

// NewServer creates a new MCP server with promptshrink tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"promptshrink",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, tokenizers)

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
func Run(db *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry, version string) error {
	s := NewServer(db, cfg, tokenizers, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
