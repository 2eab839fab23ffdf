package optimize

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/promptshrink/internal/catalog"
	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/rewrite"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

func seededTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	for _, p := range rewrite.SeedPatterns() {
		if err := db.InsertPattern(database, p); err != nil {
			t.Fatalf("InsertPattern() error = %v", err)
		}
	}
	for _, sc := range rewrite.SeedConcepts() {
		if err := db.UpsertConcept(database, sc.Concept); err != nil {
			t.Fatalf("UpsertConcept() error = %v", err)
		}
		for _, f := range sc.SurfaceForms {
			if err := db.InsertSurfaceForm(database, f); err != nil {
				t.Fatalf("InsertSurfaceForm() error = %v", err)
			}
		}
	}
	return database
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return New(seededTestDB(t), config.DefaultConfig(), tokenizer.NewRegistry())
}

func TestOptimize_RemovesBoilerplate(t *testing.T) {
	p := testPipeline(t)

	result, err := p.Optimize(context.Background(), Request{
		Prompt:      "Please could you kindly help me understand this function?",
		TokenizerID: "word_heuristic",
		Aggressive:  true,
	})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if result.Optimized == result.Original {
		t.Error("expected some boilerplate removal, got unchanged text")
	}
	if result.OptimizedTokens >= result.OriginalTokens {
		t.Errorf("OptimizedTokens = %d, want < OriginalTokens = %d", result.OptimizedTokens, result.OriginalTokens)
	}
}

func TestOptimize_UnknownTokenizerErrors(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Optimize(context.Background(), Request{
		Prompt:      "hello",
		TokenizerID: "nonexistent",
	})
	if err == nil {
		t.Fatal("Optimize() expected error for unknown tokenizer")
	}
}

func TestOptimize_InvalidConfidenceThresholdRejected(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Optimize(context.Background(), Request{
		Prompt:              "hello",
		TokenizerID:         "word_heuristic",
		ConfidenceThreshold: 1.5,
	})
	if err == nil {
		t.Fatal("Optimize() expected error for out-of-range confidence_threshold")
	}
}

func TestOptimize_AppendsOutputLanguageDirective(t *testing.T) {
	p := testPipeline(t)

	result, err := p.Optimize(context.Background(), Request{
		Prompt:          "Explain recursion.",
		TokenizerID:     "word_heuristic",
		OutputLanguage:  "spanish",
		DirectiveFormat: DirectiveBracketed,
	})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	want := "[output_language: spanish]"
	if result.Optimized[len(result.Optimized)-len(want):] != want {
		t.Errorf("Optimized = %q, want suffix %q", result.Optimized, want)
	}
}

func TestOptimize_CancelledContext(t *testing.T) {
	p := testPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Optimize(ctx, Request{
		Prompt:      "Please kindly help me.",
		TokenizerID: "word_heuristic",
	})
	if err == nil {
		t.Fatal("Optimize() expected error for cancelled context")
	}
}

func TestOptimize_CachesSecondCallIdentically(t *testing.T) {
	p := testPipeline(t)
	req := Request{
		Prompt:      "Please could you kindly help me debug this error?",
		TokenizerID: "word_heuristic",
		Aggressive:  true,
	}

	first, err := p.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("Optimize() first call error = %v", err)
	}
	second, err := p.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("Optimize() second call error = %v", err)
	}
	if first.Optimized != second.Optimized {
		t.Errorf("cached result mismatch: %q vs %q", first.Optimized, second.Optimized)
	}
}

func TestOptimize_AggressiveBypassRestrictedToStructuralKind(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	// A non-token-saving "structural" pattern (same token count) should be
	// applied under aggressive=true...
	structural := &catalog.Pattern{PatternType: "structural", RegexPattern: `\bfoo\b`, Replacement: "bar", BaseConfidence: 0.9, Enabled: true}
	if err := db.InsertPattern(database, structural); err != nil {
		t.Fatalf("InsertPattern(structural) error = %v", err)
	}
	// ...but a non-token-saving "synonym" pattern (same token count, not
	// structural) should not be, even with aggressive=true.
	synonym := &catalog.Pattern{PatternType: "synonym", RegexPattern: `\bbaz\b`, Replacement: "qux", BaseConfidence: 0.9, Enabled: true}
	if err := db.InsertPattern(database, synonym); err != nil {
		t.Fatalf("InsertPattern(synonym) error = %v", err)
	}

	p := New(database, config.DefaultConfig(), tokenizer.NewRegistry())

	result, err := p.Optimize(context.Background(), Request{
		Prompt:      "foo baz",
		TokenizerID: "word_heuristic",
		Aggressive:  true,
	})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	foundStructural, foundSynonym := false, false
	for _, r := range result.Applied {
		if r.Replacement == "bar" {
			foundStructural = true
		}
		if r.Replacement == "qux" {
			foundSynonym = true
		}
	}
	if !foundStructural {
		t.Error("expected the non-token-saving structural rewrite to be applied under aggressive=true")
	}
	if foundSynonym {
		t.Error("non-structural non-token-saving rewrite must not bypass the filter under aggressive=true")
	}
}

func TestOptimize_NoCandidatesReturnsUnchanged(t *testing.T) {
	p := testPipeline(t)

	result, err := p.Optimize(context.Background(), Request{
		Prompt:      "xyz",
		TokenizerID: "word_heuristic",
	})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if result.Delta < 0 {
		t.Errorf("Delta = %d, want >= 0 when nothing matched", result.Delta)
	}
}
