package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/errors"
	"github.com/hpungsan/promptshrink/internal/optimize"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	tokenizers *tokenizer.Registry
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry) *Handlers {
	return &Handlers{db: db, cfg: cfg, tokenizers: tokenizers}
}

// OptimizeRequest represents the arguments for prompt_optimize.
type OptimizeRequest struct {
	Prompt              string  `json:"prompt"`
	TokenizerID         string  `json:"tokenizer_id,omitempty"`
	OutputLanguage      string  `json:"output_language,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	Aggressive          bool    `json:"aggressive,omitempty"`
	SelectionPolicy     string  `json:"selection_policy,omitempty"`
	ProtectionPolicy    string  `json:"protection_policy,omitempty"`
	DirectiveFormat     string  `json:"directive_format,omitempty"`
}

// HandleOptimize handles the prompt_optimize tool call.
func (h *Handlers) HandleOptimize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OptimizeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := optimize.Run(ctx, h.db, h.cfg, h.tokenizers, optimize.Request{
		Prompt:              input.Prompt,
		TokenizerID:         input.TokenizerID,
		OutputLanguage:      input.OutputLanguage,
		ConfidenceThreshold: input.ConfidenceThreshold,
		Aggressive:          input.Aggressive,
		SelectionPolicy:     optimize.SelectionPolicy(input.SelectionPolicy),
		ProtectionPolicy:    input.ProtectionPolicy,
		DirectiveFormat:     optimize.DirectiveFormat(input.DirectiveFormat),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePatternsList handles the patterns_list tool call.
func (h *Handlers) HandlePatternsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patterns, err := db.LoadPatterns(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(patterns)
}

// HandleConceptsList handles the concepts_list tool call.
func (h *Handlers) HandleConceptsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	concepts, err := db.ListConcepts(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(concepts)
}

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if optErr, ok := err.(*errors.OptimizeError); ok {
		errorObj := map[string]any{
			"code":    optErr.Code,
			"message": optErr.Message,
			"status":  optErr.Status,
		}
		if optErr.Code != errors.ErrInternal && optErr.Details != nil {
			errorObj["details"] = optErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
