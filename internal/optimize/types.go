// Package optimize implements the Pipeline Orchestrator (C9): it chains the
// protected-region detector, pattern and concept engines, confidence
// calibrator, and overlap resolver into a single synchronous request/result
// cycle, matching spec.md §4.9 and §6's external interface.
package optimize

import "github.com/hpungsan/promptshrink/internal/errors"

// SelectionPolicy names a cross-lingual surface-form selection strategy. It
// is validated and is part of the cache key; it is not passed to the Concept
// Engine, which always picks the minimum-token form.
type SelectionPolicy string

const (
	SelectionMinTokens          SelectionPolicy = "min_tokens"
	SelectionSameLanguage       SelectionPolicy = "same_language"
	SelectionPreferOriginalLang SelectionPolicy = "prefer_original_language"
)

// DirectiveFormat controls how the output-language directive is rendered
// after the optimized body.
type DirectiveFormat string

const (
	DirectiveBracketed   DirectiveFormat = "bracketed"
	DirectiveInstructive DirectiveFormat = "instructive"
	DirectiveXML         DirectiveFormat = "xml"
	DirectiveNatural     DirectiveFormat = "natural"
	DirectiveNone        DirectiveFormat = "none"
)

// Request is a single optimization invocation, per spec.md §3/§6.
type Request struct {
	Prompt             string
	TokenizerID        string
	OutputLanguage     string // e.g. "zh"; "" means none requested
	ConfidenceThreshold float64
	Aggressive         bool
	SelectionPolicy    SelectionPolicy
	ProtectionPolicy   string // "conservative" or "aggressive"; "" uses config default
	DirectiveFormat    DirectiveFormat

	// SessionID identifies the caller; "" is allowed. The pipeline does not
	// read it: Result.ReviewSessionID is generated by the pipeline, not taken
	// from this field.
	SessionID string
}

// Origin identifies which catalog entry produced a rewrite.
type Origin struct {
	PatternID  *int64  `json:"pattern_id,omitempty"`
	ConceptQID *string `json:"concept_qid,omitempty"`
}

// Rewrite is one candidate or applied rewrite in the result, per spec.md
// §3's "Candidate rewrite" entity.
type Rewrite struct {
	Start              int     `json:"start"`
	End                int     `json:"end"`
	SourceKind         string  `json:"source_kind"`
	Original           string  `json:"original"`
	Replacement        string  `json:"replacement"`
	BaseConfidence     float64 `json:"base_confidence"`
	FinalConfidence    float64 `json:"final_confidence"`
	Origin             Origin  `json:"origin"`
	TokenDeltaEstimate int     `json:"token_delta_estimate"`
}

// Result is the outcome of one optimization request, per spec.md §6.
type Result struct {
	Original       string    `json:"original"`
	Optimized      string    `json:"optimized"`
	OriginalTokens int       `json:"original_tokens"`
	OptimizedTokens int      `json:"optimized_tokens"`
	Delta          int       `json:"delta"`
	DeltaFraction  float64   `json:"delta_fraction"`
	Applied        []Rewrite `json:"applied"`
	Deferred       []Rewrite `json:"deferred"`
	ReviewSessionID *string  `json:"review_session_id,omitempty"`
}

func validateRequest(req Request) error {
	if req.ConfidenceThreshold != 0 && (req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1) {
		return errors.NewInvalidRequest("confidence_threshold must be in [0, 1]")
	}
	switch req.SelectionPolicy {
	case "", SelectionMinTokens, SelectionSameLanguage, SelectionPreferOriginalLang:
	default:
		return errors.NewInvalidRequest("selection_policy must be one of: min_tokens, same_language, prefer_original_language")
	}
	switch req.ProtectionPolicy {
	case "", "conservative", "aggressive":
	default:
		return errors.NewInvalidRequest("protection_policy must be one of: conservative, aggressive")
	}
	switch req.DirectiveFormat {
	case "", DirectiveBracketed, DirectiveInstructive, DirectiveXML, DirectiveNatural, DirectiveNone:
	default:
		return errors.NewInvalidRequest("directive_format must be one of: bracketed, instructive, xml, natural, none")
	}
	return nil
}
