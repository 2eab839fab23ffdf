// Package protect implements the protected region detector (C4): it marks
// byte ranges of a prompt that rewrite engines must never touch — code,
// template variables, URLs and paths, technical identifiers, quoted
// strings, and instruction keywords.
//
// Philosophy: efficiency without comprehension is a loop, not a shortcut —
// never optimize instructions, code, or domain-specific terms.
package protect

import (
	"regexp"
	"sort"
	"strings"
)

// RegionType classifies why a span is protected.
type RegionType string

const (
	RegionCodeBlock          RegionType = "code_block"
	RegionTemplateVariable   RegionType = "template_variable"
	RegionURLOrPath          RegionType = "url_or_path"
	RegionIdentifier         RegionType = "identifier"
	RegionQuotedString       RegionType = "quoted_string"
	RegionInstructionKeyword RegionType = "instruction_keyword"
)

// Policy controls how aggressively the detector protects text.
type Policy string

const (
	// PolicyConservative protects more regions: safer, less compression.
	PolicyConservative Policy = "conservative"
	// PolicyAggressive protects fewer regions: more compression, higher risk.
	PolicyAggressive Policy = "aggressive"
)

// Region is a protected byte range [Start, End) in the original text.
type Region struct {
	Start   int
	End     int
	Type    RegionType
	Content string
}

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")
	inlineCode      = regexp.MustCompile("`[^`]+`")

	mustacheVar = regexp.MustCompile(`\{\{[^}]+\}\}`)
	dollarVar   = regexp.MustCompile(`\$\{[^}]+\}`)
	jinjaVar    = regexp.MustCompile(`\{%[^%]+%\}`)

	urlPattern  = regexp.MustCompile(`https?://[^\s]+`)
	filePattern = regexp.MustCompile(`(?:[a-zA-Z]:\\[a-zA-Z0-9_.\\-]+)|(?:[a-zA-Z0-9_.-]*(?:[/\\][a-zA-Z0-9_.-]+)+)`)

	camelCase     = regexp.MustCompile(`\b[a-z]+[A-Z][a-zA-Z0-9]*\b`)
	snakeCase     = regexp.MustCompile(`\b[a-z]+_[a-z0-9_]+\b`)
	screamingCase = regexp.MustCompile(`\b[A-Z][A-Z0-9_]{2,}\b`)
	doubleQuoted  = regexp.MustCompile(`"[^"]*"`)
	singleQuoted  = regexp.MustCompile(`'[^']*'`)

	// instructionKwd matches the fixed, case-sensitive shouted-directive set
	// from spec.md §4.4. "MUST NOT" is listed before "MUST" so it wins the
	// alternation rather than being split into a bare "MUST" match.
	instructionKwd = regexp.MustCompile(`\b(MUST NOT|MUST|SHALL|REQUIRED|JSON|XML|FORMAT)\b`)
)

// Detector finds protected regions under a fixed Policy.
type Detector struct {
	policy Policy
}

// NewDetector returns a Detector applying the given policy.
func NewDetector(policy Policy) *Detector {
	if policy == "" {
		policy = PolicyConservative
	}
	return &Detector{policy: policy}
}

// Detect returns all protected regions in text, sorted by start position
// with overlapping or adjacent regions merged.
func (d *Detector) Detect(text string) []Region {
	var regions []Region

	regions = append(regions, fencedCodeRegions(text)...)
	regions = append(regions, findAll(text, inlineCode, RegionCodeBlock)...)
	regions = append(regions, indentedCodeLines(text)...)

	regions = append(regions, templateVarRegions(text)...)

	regions = append(regions, findAll(text, urlPattern, RegionURLOrPath)...)
	regions = append(regions, findAll(text, filePattern, RegionURLOrPath)...)

	regions = append(regions, findAll(text, instructionKwd, RegionInstructionKeyword)...)

	// Identifiers are protected under both policies; only quoted strings
	// are conservative-only.
	regions = append(regions, findAll(text, camelCase, RegionIdentifier)...)
	regions = append(regions, findAll(text, snakeCase, RegionIdentifier)...)
	regions = append(regions, findAll(text, screamingCase, RegionIdentifier)...)

	if d.policy == PolicyConservative {
		regions = append(regions, findAll(text, doubleQuoted, RegionQuotedString)...)
		regions = append(regions, findAll(text, singleQuoted, RegionQuotedString)...)
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	return mergeOverlapping(regions)
}

// IsProtected reports whether [start, end) overlaps any region.
func IsProtected(regions []Region, start, end int) bool {
	for _, r := range regions {
		if !(end <= r.Start || start >= r.End) {
			return true
		}
	}
	return false
}

// fencedCodeRegions finds ```-delimited code blocks. A closing fence that
// never arrives protects everything from the unmatched opening fence to
// end of input, rather than leaving the rest of the prompt unprotected.
func fencedCodeRegions(text string) []Region {
	regions := findAll(text, fencedCodeBlock, RegionCodeBlock)

	consumed := 0
	if len(regions) > 0 {
		consumed = regions[len(regions)-1].End
	}
	if idx := strings.Index(text[consumed:], "```"); idx >= 0 {
		start := consumed + idx
		regions = append(regions, Region{Start: start, End: len(text), Type: RegionCodeBlock, Content: text[start:]})
	}
	return regions
}

// templateVarRegions finds {{...}}, ${...}, and {%...%} template expressions.
// An opening marker with no matching close extends protection to end of
// line rather than leaving the rest of the line unprotected, mirroring the
// fenced-code end-of-input fallback.
func templateVarRegions(text string) []Region {
	var regions []Region
	regions = append(regions, findAll(text, mustacheVar, RegionTemplateVariable)...)
	regions = append(regions, findAll(text, dollarVar, RegionTemplateVariable)...)
	regions = append(regions, findAll(text, jinjaVar, RegionTemplateVariable)...)

	regions = append(regions, unbalancedTemplateOpenings(text, "{{", regions)...)
	regions = append(regions, unbalancedTemplateOpenings(text, "${", regions)...)
	regions = append(regions, unbalancedTemplateOpenings(text, "{%", regions)...)
	return regions
}

func unbalancedTemplateOpenings(text, opening string, matched []Region) []Region {
	var regions []Region
	searchFrom := 0
	for {
		idx := strings.Index(text[searchFrom:], opening)
		if idx < 0 {
			break
		}
		start := searchFrom + idx
		searchFrom = start + len(opening)
		if withinAny(matched, start) {
			continue
		}
		end := start + len(opening)
		if nl := strings.IndexByte(text[end:], '\n'); nl >= 0 {
			end += nl
		} else {
			end = len(text)
		}
		regions = append(regions, Region{Start: start, End: end, Type: RegionTemplateVariable, Content: text[start:end]})
	}
	return regions
}

func withinAny(regions []Region, pos int) bool {
	for _, r := range regions {
		if pos >= r.Start && pos < r.End {
			return true
		}
	}
	return false
}

func findAll(text string, re *regexp.Regexp, t RegionType) []Region {
	idx := re.FindAllStringIndex(text, -1)
	regions := make([]Region, 0, len(idx))
	for _, m := range idx {
		regions = append(regions, Region{Start: m[0], End: m[1], Type: t, Content: text[m[0]:m[1]]})
	}
	return regions
}

// indentedCodeLines protects lines indented by 4+ spaces, matching
// CommonMark's indented code block convention.
func indentedCodeLines(text string) []Region {
	var regions []Region
	offset := 0
	for _, line := range splitKeepEnds(text) {
		trimmedLine := stripEOL(line)
		if len(trimmedLine) > 4 && trimmedLine[:4] == "    " && len(stripSpace(trimmedLine)) > 0 {
			regions = append(regions, Region{
				Start:   offset,
				End:     offset + len(trimmedLine),
				Type:    RegionCodeBlock,
				Content: trimmedLine,
			})
		}
		offset += len(line)
	}
	return regions
}

func splitKeepEnds(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func stripEOL(line string) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return line[:n]
}

func stripSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func mergeOverlapping(regions []Region) []Region {
	if len(regions) == 0 {
		return nil
	}
	merged := []Region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
