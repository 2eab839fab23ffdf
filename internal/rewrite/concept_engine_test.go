package rewrite

import (
	"testing"

	"github.com/hpungsan/promptshrink/internal/catalog"
)

type fakeTokenizerBackend struct {
	counts map[string]int
}

func (f *fakeTokenizerBackend) ID() string { return "fake" }

func (f *fakeTokenizerBackend) CountTokens(text string) int {
	if n, ok := f.counts[text]; ok {
		return n
	}
	return len(text)
}

func hospitalCatalog() (ResolveLabelFunc, SurfaceFormsFunc) {
	concept := &catalog.Concept{QID: "Q16917", LabelEn: "hospital"}
	forms := []*catalog.SurfaceForm{
		{QID: "Q16917", TokenizerID: "fake", Lang: "en", Form: "hospital", TokenCount: 3, CharCount: 8},
		{QID: "Q16917", TokenizerID: "fake", Lang: "zh", Form: "医院", TokenCount: 1, CharCount: 2},
	}
	resolve := func(label string) (*catalog.Concept, error) {
		if label == "hospital" {
			return concept, nil
		}
		return nil, nil
	}
	surfaceForms := func(qid, tokenizerID string) ([]*catalog.SurfaceForm, error) {
		if qid == "Q16917" {
			return forms, nil
		}
		return nil, nil
	}
	return resolve, surfaceForms
}

func TestConceptEngine_SubstitutesCheaperForm(t *testing.T) {
	resolve, forms := hospitalCatalog()
	backend := &fakeTokenizerBackend{counts: map[string]int{"hospital": 3, "医院": 1}}

	e := NewConceptEngine(resolve, forms, ResolveNormalized, "fake", backend, "")
	cands := e.Detect("Take me to the hospital please", nil)

	var found bool
	for _, c := range cands {
		if c.OriginalText == "hospital" {
			found = true
			if c.OptimizedText != "医院" {
				t.Errorf("OptimizedText = %q, want 医院", c.OptimizedText)
			}
			if c.ConceptQID == nil || *c.ConceptQID != "Q16917" {
				t.Errorf("ConceptQID = %v, want Q16917", c.ConceptQID)
			}
		}
	}
	if !found {
		t.Fatal("expected a candidate substituting 'hospital'")
	}
}

func TestConceptEngine_CaseInsensitiveResolution(t *testing.T) {
	resolve, forms := hospitalCatalog()
	backend := &fakeTokenizerBackend{counts: map[string]int{"Hospital": 3, "医院": 1}}

	e := NewConceptEngine(resolve, forms, ResolveNormalized, "fake", backend, "")
	cands := e.Detect("Hospital visits are common.", nil)

	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].BaseConfidence != ConfidenceNormalized {
		t.Errorf("BaseConfidence = %v, want %v (normalized tier)", cands[0].BaseConfidence, ConfidenceNormalized)
	}
}

func TestConceptEngine_ExactTierHigherConfidence(t *testing.T) {
	resolve, forms := hospitalCatalog()
	backend := &fakeTokenizerBackend{counts: map[string]int{"hospital": 3, "医院": 1}}

	e := NewConceptEngine(resolve, forms, ResolveNormalized, "fake", backend, "")
	cands := e.Detect("I went to the hospital today.", nil)

	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].BaseConfidence != ConfidenceExact {
		t.Errorf("BaseConfidence = %v, want %v (exact tier)", cands[0].BaseConfidence, ConfidenceExact)
	}
}

func TestConceptEngine_NoSavingsDropped(t *testing.T) {
	resolve, forms := hospitalCatalog()
	// Both forms cost the same as the original span; no candidate should emit.
	backend := &fakeTokenizerBackend{counts: map[string]int{"hospital": 1, "医院": 1}}

	e := NewConceptEngine(resolve, forms, ResolveNormalized, "fake", backend, "")
	cands := e.Detect("hospital", nil)

	for _, c := range cands {
		if c.OriginalText == "hospital" {
			t.Errorf("expected no candidate when no token savings exist, got %+v", c)
		}
	}
}

func TestConceptEngine_UnresolvedSpanProducesNoCandidate(t *testing.T) {
	resolve, forms := hospitalCatalog()
	backend := &fakeTokenizerBackend{}

	e := NewConceptEngine(resolve, forms, ResolveNormalized, "fake", backend, "")
	cands := e.Detect("The clinic down the street.", nil)

	if len(cands) != 0 {
		t.Errorf("len(cands) = %d, want 0 (no concept matches 'clinic')", len(cands))
	}
}

func TestSelectCheapestForm_PrefersPreferredLanguageOnTie(t *testing.T) {
	forms := []*catalog.SurfaceForm{
		{Lang: "en", Form: "hospital", TokenCount: 1, CharCount: 8},
		{Lang: "es", Form: "hospital", TokenCount: 1, CharCount: 8},
		{Lang: "fr", Form: "hôpital", TokenCount: 1, CharCount: 7},
	}
	got := selectCheapestForm(forms, "fr")
	if got.Lang != "fr" {
		t.Errorf("Lang = %q, want fr", got.Lang)
	}
}

func TestSelectCheapestForm_MinTokensWithoutPreference(t *testing.T) {
	forms := []*catalog.SurfaceForm{
		{Lang: "en", Form: "hospital", TokenCount: 3, CharCount: 8},
		{Lang: "zh", Form: "医院", TokenCount: 1, CharCount: 2},
	}
	got := selectCheapestForm(forms, "")
	if got.Lang != "zh" {
		t.Errorf("Lang = %q, want zh", got.Lang)
	}
}
