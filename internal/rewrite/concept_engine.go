// Concept Engine (C6): resolves word-run spans to catalog concepts and
// substitutes the cheapest cross-lingual surface form under the active
// tokenizer, grounded on original_source/src/concept_resolver.rs (resolution
// tiers) and surface_selector.rs (form selection policy).
package rewrite

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hpungsan/promptshrink/internal/catalog"
	"github.com/hpungsan/promptshrink/internal/confidence"
	"github.com/hpungsan/promptshrink/internal/protect"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// ResolutionPolicy controls how aggressively ResolveLabel matches text
// against the concept catalog.
type ResolutionPolicy string

const (
	// ResolveExact matches only the literal label, case-sensitive.
	ResolveExact ResolutionPolicy = "exact"
	// ResolveNormalized additionally tries lowercase and NFKC-normalized
	// forms. Fuzzy/embedding-based matching is an explicit non-goal.
	ResolveNormalized ResolutionPolicy = "normalized"
)

// Base confidences per resolution tier, documented constants per spec.
const (
	ConfidenceExact      = 0.95
	ConfidenceNormalized = 0.90
)

// ResolveLabelFunc looks up a catalog.Concept by surface label, returning
// (nil, nil) on a clean miss.
type ResolveLabelFunc func(label string) (*catalog.Concept, error)

// SurfaceFormsFunc returns the surface forms available for a concept under
// a tokenizer.
type SurfaceFormsFunc func(qid, tokenizerID string) ([]*catalog.SurfaceForm, error)

// ConceptEngine detects concept-substitution candidates in a prompt.
type ConceptEngine struct {
	resolveLabelFn  ResolveLabelFunc
	surfaceFormsFn  SurfaceFormsFunc
	policy          ResolutionPolicy
	outputLanguage  string // preferred tie-break language; "" = none
	tokenizerID     string
	tokenizerEngine tokenizer.Backend
}

// NewConceptEngine builds a Concept Engine against the given catalog
// accessors. outputLanguage is the request's preferred output language tag
// (e.g. "zh"), used only to break surface-form ties; pass "" for none.
func NewConceptEngine(resolveLabelFn ResolveLabelFunc, surfaceFormsFn SurfaceFormsFunc, policy ResolutionPolicy, tokenizerID string, backend tokenizer.Backend, outputLanguage string) *ConceptEngine {
	if policy == "" {
		policy = ResolveNormalized
	}
	return &ConceptEngine{
		resolveLabelFn:  resolveLabelFn,
		surfaceFormsFn:  surfaceFormsFn,
		policy:          policy,
		outputLanguage:  outputLanguage,
		tokenizerID:     tokenizerID,
		tokenizerEngine: backend,
	}
}

// wordRun matches a contiguous run of word characters and internal
// apostrophes/hyphens, the unit the reference resolver looks up.
var wordRun = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'-]*`)

// Detect extracts candidate concept spans (word runs of 1-4 tokens,
// excluding protected spans), resolves each against the concept catalog,
// and emits a rewrite candidate when a strictly cheaper surface form exists.
func (e *ConceptEngine) Detect(text string, regions []protect.Region) []Candidate {
	if e.resolveLabelFn == nil || e.surfaceFormsFn == nil || e.tokenizerEngine == nil {
		return nil
	}

	words := wordRun.FindAllStringIndex(text, -1)
	var out []Candidate

	// Try runs of 4, 3, 2, then 1 words, longest first so multi-word
	// concepts ("step by step") take priority over their component words.
	for runLen := 4; runLen >= 1; runLen-- {
		for i := 0; i+runLen <= len(words); i++ {
			start := words[i][0]
			end := words[i+runLen-1][1]
			if protect.IsProtected(regions, start, end) {
				continue
			}
			span := text[start:end]
			if cand, ok := e.resolveSpan(span, start, end); ok {
				out = append(out, cand)
			}
		}
	}
	return out
}

func (e *ConceptEngine) resolveSpan(span string, start, end int) (Candidate, bool) {
	concept, tier, err := e.resolveLabel(span)
	if err != nil || concept == nil {
		return Candidate{}, false
	}

	forms, err := e.surfaceFormsFn(concept.QID, e.tokenizerID)
	if err != nil || len(forms) == 0 {
		return Candidate{}, false
	}

	originalTokens := e.tokenizerEngine.CountTokens(span)
	best := selectCheapestForm(forms, e.outputLanguage)
	if best == nil || best.TokenCount >= originalTokens || best.Form == span {
		return Candidate{}, false
	}

	baseConfidence := ConfidenceNormalized
	if tier == ResolveExact {
		baseConfidence = ConfidenceExact
	}

	qid := concept.QID
	return Candidate{
		Type:           confidence.TypeMandarinSubstitution,
		OriginalText:   span,
		OptimizedText:  best.Form,
		Start:          start,
		End:            end,
		BaseConfidence: baseConfidence,
		Reasoning:      "cross-lingual substitution via concept " + concept.QID,
		ConceptQID:     &qid,
	}, true
}

// resolveLabel implements the exact/normalized resolution tiers: exact
// match first, then lowercase, then NFKC-normalized, then both.
func (e *ConceptEngine) resolveLabel(text string) (*catalog.Concept, ResolutionPolicy, error) {
	concept, err := e.resolveLabelFn(text)
	if err != nil {
		return nil, "", err
	}
	if concept != nil {
		return concept, ResolveExact, nil
	}
	if e.policy == ResolveExact {
		return nil, "", nil
	}

	lower := strings.ToLower(text)
	if concept, err = e.resolveLabelFn(lower); err != nil {
		return nil, "", err
	}
	if concept != nil {
		return concept, ResolveNormalized, nil
	}

	normalized := norm.NFKC.String(text)
	if normalized != text {
		if concept, err = e.resolveLabelFn(normalized); err != nil {
			return nil, "", err
		}
		if concept != nil {
			return concept, ResolveNormalized, nil
		}
	}

	normalizedLower := norm.NFKC.String(lower)
	if normalizedLower != lower && normalizedLower != text {
		if concept, err = e.resolveLabelFn(normalizedLower); err != nil {
			return nil, "", err
		}
		if concept != nil {
			return concept, ResolveNormalized, nil
		}
	}

	return nil, "", nil
}

// selectCheapestForm picks the minimum-token-count surface form, breaking
// ties by preferring preferredLang then shorter char_count, mirroring
// surface_selector.rs's PreferOriginalLanguage policy.
func selectCheapestForm(forms []*catalog.SurfaceForm, preferredLang string) *catalog.SurfaceForm {
	if len(forms) == 0 {
		return nil
	}
	best := forms[0]
	for _, f := range forms[1:] {
		switch {
		case f.TokenCount < best.TokenCount:
			best = f
		case f.TokenCount == best.TokenCount:
			if preferredLang != "" && f.Lang == preferredLang && best.Lang != preferredLang {
				best = f
			} else if (preferredLang == "" || best.Lang != preferredLang) && f.CharCount < best.CharCount {
				best = f
			}
		}
	}
	return best
}
