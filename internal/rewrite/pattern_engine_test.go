package rewrite

import (
	"strings"
	"testing"

	"github.com/hpungsan/promptshrink/internal/catalog"
	"github.com/hpungsan/promptshrink/internal/protect"
)

func seedAsRecords(t *testing.T) []*catalog.Pattern {
	t.Helper()
	var id int64 = 1
	records := SeedPatterns()
	for _, r := range records {
		r.ID = id
		id++
	}
	return records
}

func TestNewPatternEngine_CompilesSeedPatterns(t *testing.T) {
	e := NewPatternEngine(seedAsRecords(t))
	if e.PatternCount() != len(SeedPatterns()) {
		t.Errorf("PatternCount() = %d, want %d", e.PatternCount(), len(SeedPatterns()))
	}
}

func TestNewPatternEngine_SkipsInvalidRegex(t *testing.T) {
	records := []*catalog.Pattern{
		{ID: 1, PatternType: "boilerplate", RegexPattern: `(unterminated`, Enabled: true},
		{ID: 2, PatternType: "filler", RegexPattern: `\bvery\b`, Enabled: true},
	}
	e := NewPatternEngine(records)
	if e.PatternCount() != 1 {
		t.Errorf("PatternCount() = %d, want 1 (invalid regex skipped)", e.PatternCount())
	}
}

func TestDetect_BoilerplateRemoval(t *testing.T) {
	records := []*catalog.Pattern{
		{ID: 1, PatternType: "boilerplate", RegexPattern: `(?i)I would really appreciate (it )?if you could\s*`, Replacement: "", BaseConfidence: 0.97, Reasoning: "boilerplate", Enabled: true},
	}
	e := NewPatternEngine(records)
	text := "I would really appreciate it if you could help me with this task."
	cands := e.Detect(text, nil)
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].OptimizedText != "" {
		t.Errorf("OptimizedText = %q, want empty", cands[0].OptimizedText)
	}
}

func TestDetect_SkipsProtectedRegion(t *testing.T) {
	records := []*catalog.Pattern{
		{ID: 1, PatternType: "filler", RegexPattern: `(?i)\bvery\b`, Replacement: "", BaseConfidence: 0.85, Enabled: true},
	}
	text := "This is very important: `this is very much code`."
	fenceStart := strings.Index(text, "`")
	fenceEnd := strings.LastIndex(text, "`") + 1
	regions := []protect.Region{{Start: fenceStart, End: fenceEnd, Type: protect.RegionCodeBlock}}

	e := NewPatternEngine(records)
	cands := e.Detect(text, regions)

	for _, c := range cands {
		if c.Start >= fenceStart {
			t.Errorf("candidate at %d falls inside protected region starting at %d", c.Start, fenceStart)
		}
	}
	if len(cands) != 1 {
		t.Errorf("len(cands) = %d, want 1 (only the unprotected 'very')", len(cands))
	}
}

func TestDetect_StructuralReplacementGroups(t *testing.T) {
	records := []*catalog.Pattern{
		{ID: 1, PatternType: "structural", RegexPattern: `\b(\d+)\s*kilometers?\b`, Replacement: "${1}km", BaseConfidence: 0.93, Enabled: true},
	}
	e := NewPatternEngine(records)
	cands := e.Detect("The distance is 10 kilometers.", nil)
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].OptimizedText != "10km" {
		t.Errorf("OptimizedText = %q, want %q", cands[0].OptimizedText, "10km")
	}
	if !cands[0].IsStructural {
		t.Error("IsStructural = false, want true for a structural-kind pattern")
	}
}

func TestDetect_NonStructuralPatternIsNotMarkedStructural(t *testing.T) {
	records := []*catalog.Pattern{
		{ID: 1, PatternType: "synonym", RegexPattern: `\blook at\b`, Replacement: "analyze", BaseConfidence: 0.8, Enabled: true},
	}
	e := NewPatternEngine(records)
	cands := e.Detect("please look at this", nil)
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].IsStructural {
		t.Error("IsStructural = true, want false for a non-structural-kind pattern")
	}
}

func TestDetect_PatternTypeMapping(t *testing.T) {
	records := []*catalog.Pattern{
		{ID: 1, PatternType: "mandarin", RegexPattern: `(?i)\bcode\b`, Replacement: "代码", BaseConfidence: 0.94, Enabled: true},
	}
	e := NewPatternEngine(records)
	cands := e.Detect("check the code", nil)
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].PatternID == nil || *cands[0].PatternID != 1 {
		t.Errorf("PatternID = %v, want pointer to 1", cands[0].PatternID)
	}
}
