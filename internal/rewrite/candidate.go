package rewrite

import "github.com/hpungsan/promptshrink/internal/confidence"

// Candidate is a single proposed rewrite span, produced by either the
// Pattern Engine (C5) or the Concept Engine (C6) and consumed by the
// overlap resolver and confidence calibrator.
type Candidate struct {
	Type           confidence.OptimizationType
	OriginalText   string
	OptimizedText  string
	Start          int
	End            int
	BaseConfidence float64
	Reasoning      string

	// IsStructural mirrors the catalog's raw "structural" pattern kind,
	// the one kind allowed to bypass the non-token-saving filter under an
	// aggressive request. Concept-engine candidates are never structural.
	IsStructural bool

	// PatternID and ConceptQID identify the catalog entry this candidate
	// came from, for feedback recording; exactly one is set.
	PatternID  *int64
	ConceptQID *string
}

// parseOptimizationType maps a catalog pattern_type column value to its
// confidence-calibrator category, mirroring the reference implementation's
// database pattern type dispatch.
func parseOptimizationType(patternType string) confidence.OptimizationType {
	switch patternType {
	case "boilerplate":
		return confidence.TypeBoilerplateRemoval
	case "filler":
		return confidence.TypeFillerRemoval
	case "instruction":
		return confidence.TypeInstructionCompression
	case "synonym":
		return confidence.TypeSynonymConsolidation
	case "mandarin":
		return confidence.TypeMandarinSubstitution
	case "redundant", "structural":
		return confidence.TypeFormatConsolidation
	default:
		return confidence.TypeFormatConsolidation
	}
}
