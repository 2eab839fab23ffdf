package mcp

import "github.com/mark3labs/mcp-go/mcp"

var optimizeToolDef = mcp.NewTool("prompt_optimize",
	mcp.WithDescription("Reduce a prompt's token count by removing boilerplate, filler, and redundant instructions, and by substituting cheaper cross-lingual surface forms, without changing its meaning."),
	mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt text to optimize.")),
	mcp.WithString("tokenizer_id", mcp.Description("Tokenizer to measure against: cl100k_base, claude, or word_heuristic. Defaults to the server's configured default.")),
	mcp.WithString("output_language", mcp.Description("If set, appends an output-language directive and allows concept substitution toward this language.")),
	mcp.WithNumber("confidence_threshold", mcp.Description("Minimum calibrated confidence (0-1) a rewrite needs to be applied rather than deferred. Defaults to 0.85.")),
	mcp.WithBoolean("aggressive", mcp.Description("Lowers the effective confidence threshold floor to 0.70 and allows non-token-saving structural rewrites.")),
	mcp.WithString("selection_policy", mcp.Description("How the concept engine picks among equally-cheap surface forms: min_tokens, same_language, or prefer_original_language.")),
	mcp.WithString("protection_policy", mcp.Description("How conservatively code, identifiers, and instructions are protected from rewriting: conservative or aggressive.")),
	mcp.WithString("directive_format", mcp.Description("How the output-language directive is rendered: bracketed, instructive, xml, natural, or none.")),
)

var patternsListToolDef = mcp.NewTool("patterns_list",
	mcp.WithDescription("List the regex-backed rewrite patterns in the pattern catalog, with their current confidence and application counts."),
)

var conceptsListToolDef = mcp.NewTool("concepts_list",
	mcp.WithDescription("List the cross-lingual concepts in the concept catalog."),
)
