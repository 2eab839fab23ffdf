// Package confidence implements the Bayesian-style confidence calibrator
// (C8): it scores a candidate rewrite from its pattern's base confidence,
// the surrounding context's risk, the pattern's corpus frequency, and the
// semantic risk of losing meaning, then folds human feedback back into the
// pattern's prior for the next request.
package confidence

import (
	"math"
	"strings"
)

// OptimizationType mirrors the pipeline's rewrite categories, used to bias
// risk assessment per type (e.g. Mandarin substitution carries more
// comprehension risk than boilerplate removal).
type OptimizationType string

const (
	TypeBoilerplateRemoval     OptimizationType = "boilerplate_removal"
	TypeSynonymConsolidation   OptimizationType = "synonym_consolidation"
	TypeFillerRemoval          OptimizationType = "filler_removal"
	TypeInstructionCompression OptimizationType = "instruction_compression"
	TypeMandarinSubstitution   OptimizationType = "mandarin_substitution"
	TypeFormatConsolidation    OptimizationType = "format_consolidation"
)

// SentencePosition locates a candidate span within its surrounding sentence.
type SentencePosition string

const (
	PositionBeginning SentencePosition = "beginning"
	PositionMiddle    SentencePosition = "middle"
	PositionEnd       SentencePosition = "end"
)

// Context captures the local surroundings of a candidate rewrite span.
type Context struct {
	SurroundingText  string
	IsTechnical      bool
	HasCodeBlocks    bool
	SentencePosition SentencePosition
}

// Candidate is the minimal shape the calibrator needs from a detected
// pattern or concept match.
type Candidate struct {
	Type           OptimizationType
	OriginalText   string
	OptimizedText  string
	BaseConfidence float64
}

// Score is the full Bayesian confidence breakdown for one candidate.
type Score struct {
	BaseConfidence  float64 `json:"base_confidence"`
	ContextPenalty  float64 `json:"context_penalty"`
	FrequencyBonus  float64 `json:"frequency_bonus"`
	SemanticRisk    float64 `json:"semantic_risk"`
	FinalConfidence float64 `json:"final_confidence"`
}

// NewScore applies the calibration formula:
//
//	final = clamp(base*(1-context_penalty)*(1+frequency_bonus)*(1-semantic_risk), 0, 1)
func NewScore(base, contextPenalty, frequencyBonus, semanticRisk float64) Score {
	final := base * (1 - contextPenalty) * (1 + frequencyBonus) * (1 - semanticRisk)
	return Score{
		BaseConfidence:  base,
		ContextPenalty:  contextPenalty,
		FrequencyBonus:  frequencyBonus,
		SemanticRisk:    semanticRisk,
		FinalConfidence: clamp(final, 0, 1),
	}
}

var ambiguityMarkers = []string{"might", "could", "possibly", "perhaps", "seems", "appears", "unclear", "ambiguous"}

var technicalKeywords = []string{"function", "class", "algorithm", "code", "variable", "method", "api", "database", "server", "client"}

// Calibrator scores candidates against a corpus of per-pattern frequency
// statistics maintained across requests.
type Calibrator struct {
	// FrequencyOf returns corpus occurrence count for the given original
	// text, used to compute the frequency bonus. Nil means no corpus data.
	FrequencyOf func(originalText string) int64
}

// NewCalibrator returns a Calibrator backed by freqFn, or a calibrator with
// zero frequency bonus if freqFn is nil.
func NewCalibrator(freqFn func(originalText string) int64) *Calibrator {
	return &Calibrator{FrequencyOf: freqFn}
}

// Calculate scores a candidate within ctx.
func (c *Calibrator) Calculate(cand Candidate, ctx Context) Score {
	contextPenalty := assessContextRisk(cand, ctx)
	frequencyBonus := c.frequencyBonus(cand.OriginalText)
	semanticRisk := calculateSemanticRisk(cand, ctx)
	return NewScore(cand.BaseConfidence, contextPenalty, frequencyBonus, semanticRisk)
}

func (c *Calibrator) frequencyBonus(originalText string) float64 {
	if c == nil || c.FrequencyOf == nil {
		return 0
	}
	freq := c.FrequencyOf(originalText)
	if freq < 1 {
		freq = 1
	}
	return clamp(math.Log10(float64(freq))*0.05, 0, 0.2)
}

func assessContextRisk(cand Candidate, ctx Context) float64 {
	penalty := 0.0

	if ctx.IsTechnical {
		penalty += 0.05
	}
	if ctx.HasCodeBlocks {
		penalty += 0.03
	}

	switch ctx.SentencePosition {
	case PositionBeginning:
		if cand.Type == TypeBoilerplateRemoval {
			penalty -= 0.02
		}
	case PositionMiddle:
		penalty += 0.05
	case PositionEnd:
		penalty += 0.03
	}

	if isAmbiguousContext(ctx.SurroundingText) {
		penalty += 0.10
	}

	return clamp(penalty, 0, 0.5)
}

func calculateSemanticRisk(cand Candidate, ctx Context) float64 {
	risk := 0.0

	if cand.OptimizedText == "" {
		switch cand.Type {
		case TypeBoilerplateRemoval:
			risk += 0.02
		case TypeFillerRemoval:
			risk += 0.05
		default:
			risk += 0.15
		}
	}

	if len(cand.OriginalText) < 5 {
		risk += 0.10
	}

	if cand.Type == TypeMandarinSubstitution {
		risk += 0.08
	}

	if cand.Type == TypeSynonymConsolidation {
		originalWords := len(strings.Fields(cand.OriginalText))
		optimizedWords := len(strings.Fields(cand.OptimizedText))
		if originalWords > optimizedWords+1 {
			risk += 0.12
		}
	}

	if ctx.IsTechnical {
		risk += 0.05
	}

	return clamp(risk, 0, 0.5)
}

func isAmbiguousContext(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range ambiguityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsTechnicalText reports whether text contains at least two distinct
// technical keywords, used to populate Context.IsTechnical.
func IsTechnicalText(text string) bool {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count >= 2
}

// ExtractContext builds a Context from the window of text surrounding
// [startPos, endPos) in the full prompt.
func ExtractContext(text string, startPos, endPos, window int) Context {
	contextStart := startPos - window
	if contextStart < 0 {
		contextStart = 0
	}
	contextEnd := endPos + window
	if contextEnd > len(text) {
		contextEnd = len(text)
	}

	surrounding := text[contextStart:contextEnd]

	return Context{
		SurroundingText:  surrounding,
		IsTechnical:      IsTechnicalText(surrounding),
		HasCodeBlocks:    strings.Contains(surrounding, "```") || strings.Contains(surrounding, "    "),
		SentencePosition: determinePosition(text, startPos),
	}
}

func determinePosition(text string, pos int) SentencePosition {
	before := text[:pos]
	after := text[pos:]

	trimmedBefore := strings.TrimRight(before, " \t\n")
	isStart := strings.TrimLeft(before, " \t\n") == "" ||
		strings.HasSuffix(trimmedBefore, ".") ||
		strings.HasSuffix(trimmedBefore, "!") ||
		strings.HasSuffix(trimmedBefore, "?")

	trimmedAfter := strings.TrimLeft(after, " \t\n")
	isEnd := trimmedAfter == "" ||
		strings.HasPrefix(trimmedAfter, ".") ||
		strings.HasPrefix(trimmedAfter, "!") ||
		strings.HasPrefix(trimmedAfter, "?")

	switch {
	case isStart:
		return PositionBeginning
	case isEnd:
		return PositionEnd
	default:
		return PositionMiddle
	}
}

// UpdateBaseConfidence recomputes a pattern's base_confidence from fresh
// accept/reject totals (accepted/rejected already include this feedback
// event). While accepted+rejected is below 10 the update is blended with
// priorBase, weighted as 10 pseudo-observations; from 10 on the raw
// acceptance rate takes over.
func UpdateBaseConfidence(priorBase float64, accepted, rejected int64) float64 {
	total := accepted + rejected
	var base float64
	if total < 10 {
		base = (priorBase*10 + float64(accepted)) / float64(10+total)
	} else {
		base = float64(accepted) / float64(total)
	}
	return clamp(base, 0.01, 0.99)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
