// Pattern Engine (C5): loads regex-backed rewrite rules from the pattern
// catalog (C2), compiles them once, and scans prompts for matches that fall
// outside protected regions.
package rewrite

import (
	"log"
	"regexp"

	"github.com/hpungsan/promptshrink/internal/catalog"
	"github.com/hpungsan/promptshrink/internal/confidence"
	"github.com/hpungsan/promptshrink/internal/protect"
)

type compiledPattern struct {
	id             int64
	patternType    confidence.OptimizationType
	isStructural   bool
	regex          *regexp.Regexp
	replacement    string
	baseConfidence float64
	reasoning      string
}

// PatternEngine detects catalog-pattern matches in a prompt.
type PatternEngine struct {
	patterns []compiledPattern
}

// NewPatternEngine compiles each catalog pattern's regex. A pattern whose
// regex fails to compile is skipped with a warning rather than aborting the
// whole catalog load, matching the reference detector's tolerant loading.
func NewPatternEngine(records []*catalog.Pattern) *PatternEngine {
	e := &PatternEngine{}
	for _, rec := range records {
		re, err := regexp.Compile(rec.RegexPattern)
		if err != nil {
			log.Printf("rewrite: skipping pattern %d (%s): invalid regex: %v", rec.ID, rec.PatternType, err)
			continue
		}
		e.patterns = append(e.patterns, compiledPattern{
			id:             rec.ID,
			patternType:    parseOptimizationType(rec.PatternType),
			isStructural:   rec.PatternType == "structural",
			regex:          re,
			replacement:    rec.Replacement,
			baseConfidence: rec.BaseConfidence,
			reasoning:      rec.Reasoning,
		})
	}
	return e
}

// PatternCount reports how many patterns loaded successfully.
func (e *PatternEngine) PatternCount() int {
	return len(e.patterns)
}

// Detect scans text for every loaded pattern, skipping matches that overlap
// a protected region, and returns one Candidate per surviving match.
func (e *PatternEngine) Detect(text string, regions []protect.Region) []Candidate {
	var out []Candidate
	for _, p := range e.patterns {
		locs := p.regex.FindAllStringSubmatchIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			if protect.IsProtected(regions, start, end) {
				continue
			}
			original := text[start:end]
			optimized := string(p.regex.ExpandString(nil, p.replacement, text, loc))

			id := p.id
			out = append(out, Candidate{
				Type:           p.patternType,
				OriginalText:   original,
				OptimizedText:  optimized,
				Start:          start,
				End:            end,
				BaseConfidence: p.baseConfidence,
				Reasoning:      p.reasoning,
				IsStructural:   p.isStructural,
				PatternID:      &id,
			})
		}
	}
	return out
}
