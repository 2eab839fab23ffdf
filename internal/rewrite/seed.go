// Seed data for the pattern catalog (C2): boilerplate, filler, instruction,
// redundant-phrase, synonym, Mandarin-substitution, and structural patterns,
// ported from the reference implementation's static pattern tables. db.Init
// callers load these once via SeedPatterns when the patterns table is empty.
package rewrite

import "github.com/hpungsan/promptshrink/internal/catalog"

type seedPattern struct {
	patternType string
	regex       string
	replacement string
	confidence  float64
	reasoning   string
}

// boilerplatePatterns strips politeness and greeting filler that carries no
// instructional content.
var boilerplatePatterns = []seedPattern{
	{"boilerplate", `(?i)I would (really )?appreciate (it )?if you could\s*`, "", 0.97, "Common politeness boilerplate with no semantic value"},
	{"boilerplate", `(?i)Please make sure to\s*`, "", 0.95, "Redundant instruction emphasis"},
	{"boilerplate", `(?i)If you don't mind,?\s*`, "", 0.94, "Politeness filler"},
	{"boilerplate", `(?i)Thank you (so much )?in advance for .+?[.!]`, "", 0.96, "Boilerplate gratitude (complete sentence)"},
	{"boilerplate", `(?i)Thank you (so much )?in advance\s*`, "", 0.96, "Boilerplate gratitude"},
	{"boilerplate", `(?i)I('m| am) looking for help with\s*`, "", 0.93, "Verbose help request prefix"},
	{"boilerplate", `(?i)Could you please\s*`, "", 0.95, "Polite request prefix"},
	{"boilerplate", `(?i)Would you mind\s*`, "", 0.94, "Polite request prefix"},
	{"boilerplate", `(?i)I would (also )?like you to\s*`, "", 0.96, "Verbose instruction prefix"},
	{"boilerplate", `(?i)\bmake sure to\s+`, "", 0.94, "Redundant instruction (standalone)"},
	{"boilerplate", `(?i)It would be great if\s*`, "", 0.93, "Polite request prefix"},
	{"boilerplate", `(?i)I need you to\s*`, "", 0.92, "Direct instruction prefix"},
	{"boilerplate", `(?i)I was wondering if\s*`, "", 0.91, "Indirect question prefix"},
	{"boilerplate", `(?i)I hope you('re| are) doing well\.?\s*`, "", 0.95, "Greeting boilerplate"},
	{"boilerplate", `(?i)Hello!?\s*`, "", 0.90, "Greeting (unnecessary for prompts)"},
	{"boilerplate", `(?i)I appreciate your help\.?\s*`, "", 0.94, "Gratitude boilerplate"},
	{"boilerplate", `(?i)Thanks (so much )?for your (time|help)\.?\s*`, "", 0.95, "Gratitude boilerplate"},
	{"boilerplate", `(?i)I hope this makes sense\.?\s*`, "", 0.91, "Uncertainty filler"},
	{"boilerplate", `(?i)Let me know if you have (any )?questions\.?\s*`, "", 0.93, "Closing boilerplate"},
	{"boilerplate", `(?i)Feel free to (ask|reach out)\.?\s*`, "", 0.92, "Permission boilerplate"},
	{"boilerplate", `(?i)Any help would be (greatly )?appreciated\.?\s*`, "", 0.94, "Request boilerplate"},
	{"boilerplate", `(?i)I('m| am) having trouble with\s*`, "", 0.90, "Problem statement prefix"},
	{"boilerplate", `(?i)Can you help me (with )?\s*`, "", 0.93, "Help request prefix"},
	{"boilerplate", `(?i)\bplease\b\s+`, "", 0.88, "Politeness filler (standalone)"},
	{"boilerplate", `(?i)\bkindly\b\s+`, "", 0.85, "Politeness filler"},
}

// fillerPatterns strips intensity modifiers and hedges that rarely carry
// instructional weight.
var fillerPatterns = []seedPattern{
	{"filler", `(?i)\breally\b`, "", 0.88, "Intensity modifier with minimal semantic value"},
	{"filler", `(?i)\bvery\b`, "", 0.85, "Intensity modifier, often redundant"},
	{"filler", `(?i)\bquite\b`, "", 0.87, "Vague intensity modifier"},
	{"filler", `(?i)\bjust\b`, "", 0.82, "Minimizer, often unnecessary"},
	{"filler", `(?i)\bactually\b`, "", 0.89, "Filler word"},
	{"filler", `(?i)\bbasically\b`, "", 0.90, "Approximation filler"},
	{"filler", `(?i)\bessentially\b`, "", 0.89, "Approximation filler"},
	{"filler", `(?i)\bdefinitely\b`, "", 0.86, "Emphasis filler"},
	{"filler", `(?i)\babsolutely\b`, "", 0.87, "Emphasis filler"},
	{"filler", `(?i)\bcertainly\b`, "", 0.85, "Emphasis filler"},
	{"filler", `(?i)\bprobably\b`, "", 0.80, "Hedge word"},
	{"filler", `(?i)\bmaybe\b`, "", 0.78, "Hedge word"},
	{"filler", `(?i)\bcarefully\b`, "", 0.83, "Manner adverb, often implicit"},
	{"filler", `(?i)\balso\b`, "", 0.81, "Additive conjunction, often redundant"},
	{"filler", `(?i)\bfurthermore\b`, "", 0.84, "Formal transition word"},
	{"filler", `(?i)\bmoreover\b`, "", 0.84, "Formal transition word"},
	{"filler", `(?i)\bindeed\b`, "", 0.86, "Emphatic filler"},
	{"filler", `(?i)\bin fact\b`, "", 0.85, "Emphatic phrase"},
	{"filler", `(?i)\bclearly\b`, "", 0.87, "Obviousness marker"},
	{"filler", `(?i)\bobviously\b`, "", 0.88, "Obviousness marker"},
	{"filler", `(?i)\bsimply\b`, "", 0.84, "Minimizer filler"},
	{"filler", `(?i)\bmerely\b`, "", 0.83, "Minimizer filler"},
	{"filler", `(?i)\bsomewhat\b`, "", 0.82, "Hedge word"},
	{"filler", `(?i)\brather\b`, "", 0.80, "Hedge word"},
	{"filler", `(?i)\bpotentially\b`, "", 0.81, "Hedge word"},
	{"filler", `(?i)\bpossibly\b`, "", 0.82, "Hedge word"},
	{"filler", `(?i)\bgenerally\b`, "", 0.83, "Generalization filler"},
	{"filler", `(?i)\bliterally\b`, "", 0.89, "Overused intensifier"},
}

// instructionPatterns compress verbose instruction prefixes to imperatives.
var instructionPatterns = []seedPattern{
	{"instruction", `(?i)I want you to\s+`, "", 0.92, "Verbose instruction prefix"},
	{"instruction", `(?i)I would like you to\s+`, "", 0.91, "Verbose instruction prefix"},
	{"instruction", `(?i)I need you to\s+`, "", 0.93, "Direct instruction prefix"},
	{"instruction", `(?i)I would also like you to\s+`, "", 0.91, "Verbose continuation"},
	{"instruction", `(?i)take the time to\s+`, "", 0.94, "Verbose padding"},
	{"instruction", `(?i)carefully\s+`, "", 0.83, "Implicit in technical tasks"},
}

// redundantPatterns consolidate repeated qualifiers and synonym pairs.
var redundantPatterns = []seedPattern{
	{"redundant", `(?i)very\s+detailed\s+and\s+thorough`, "detailed", 0.92, "Redundant qualifiers"},
	{"redundant", `(?i)detailed\s+and\s+thorough`, "detailed", 0.91, "Redundant qualifiers"},
	{"redundant", `(?i)problems?\s+(or|and)\s+issues`, "issues", 0.89, "Synonyms"},
	{"redundant", `(?i)bugs?\s+(or|and)\s+issues`, "bugs", 0.88, "Synonyms"},
	{"redundant", `(?i)improve(d)?\s+or\s+optimize(d)?`, "optimized", 0.90, "Optimize is subset of improve"},
	{"redundant", `(?i)that\s+I'?m\s+working\s+on`, "", 0.87, "Implied context"},
	{"redundant", `(?i)that\s+you\s+might\s+find`, "", 0.86, "Implied action"},
	{"redundant", `(?i)this\s+code\s+snippet`, "this code", 0.88, "Redundant 'snippet'"},
	{"redundant", `(?i)any\s+potential\s+`, "", 0.85, "Redundant qualifiers"},
	{"redundant", `(?i),?\s+and\s+why\s+it\s+was\s+implemented`, ", why implemented", 0.87, "Concise phrasing"},
	{"redundant", `(?i)how\s+it\s+works,?\s+and\s+why`, "how/why", 0.86, "Conjunction slash"},
	{"redundant", `(?i)provide\s+detailed\s+suggestions\s+on\s+how\s+to\s+fix`, "suggest fixes for", 0.89, "Concise phrasing"},
	{"redundant", `(?i)If\s+you\s+find\s+any\s+`, "For any ", 0.84, "Passive conditional"},
	{"redundant", `(?i)Look\s+into\s+any\s+`, "Identify ", 0.87, "Look into -> Identify"},
	{"redundant", `(?i)check\s+for\s+any\s+`, "", 0.86, "Redundant check phrase"},
	{"redundant", `(?i)in\s+this\s+particular\s+way`, "", 0.85, "Implied by context"},
	{"redundant", `(?i)or\s+areas\s+where`, "", 0.83, "Redundant qualifier"},
	{"redundant", `(?i)best\s+practices\s+and\s+coding\s+standards`, "best practices", 0.87, "Redundant pair"},
}

// structuralPatterns normalize units, whitespace, and punctuation into their
// more token-efficient forms.
var structuralPatterns = []seedPattern{
	{"structural", `\b(\d+)\s*kilometers?\b`, "${1}km", 0.93, "Normalize kilometers to km"},
	{"structural", `\b(\d+)\s*meters?\b`, "${1}m", 0.93, "Normalize meters to m"},
	{"structural", `\b(\d+)\s*minutes?\b`, "${1}min", 0.92, "Normalize minutes to min"},
	{"structural", `\b(\d+)\s*seconds?\b`, "${1}s", 0.92, "Normalize seconds to s"},
	{"structural", `\b(\d+)\s*percent\b`, "${1}%", 0.95, "Normalize percent to %"},
	{"structural", `\b(\d+)\s*dollars?\b`, "$${1}", 0.90, "Normalize dollars to $ prefix"},
	{"structural", `\n\n\n+`, "\n\n", 0.95, "Collapse excessive newlines"},
	{"structural", `  +`, " ", 0.94, "Collapse multiple spaces"},
	{"structural", `={3,}`, "", 0.88, "Remove decorative separators (===)"},
	{"structural", `-{3,}`, "", 0.88, "Remove decorative separators (---)"},
	{"structural", `\*{3,}`, "", 0.88, "Remove decorative separators (***)"},
	{"structural", `"description":\s*`, `"desc":`, 0.85, "Shorten JSON key: description -> desc"},
	{"structural", `"configuration":\s*`, `"config":`, 0.85, "Shorten JSON key: configuration -> config"},
	{"structural", `"parameters":\s*`, `"params":`, 0.85, "Shorten JSON key: parameters -> params"},
	{"structural", `\.{2,}`, ".", 0.90, "Normalize ellipsis to single period"},
	{"structural", `!{2,}`, "!", 0.90, "Collapse multiple exclamation marks"},
	{"structural", `\?{2,}`, "?", 0.90, "Collapse multiple question marks"},
}

type synonymPair struct {
	preferred    string
	alternatives []string
	confidence   float64
	reasoning    string
}

// synonymPairs consolidate near-synonyms to a single preferred term.
var synonymPairs = []synonymPair{
	{"analyze", []string{"look at", "examine", "inspect", "review"}, 0.89, "Consolidate to stronger verb 'analyze'"},
	{"research", []string{"look into", "investigate"}, 0.88, "Consolidate to 'research'"},
	{"verify", []string{"check", "confirm"}, 0.85, "Consolidate to 'verify'"},
	{"improve", []string{"enhance", "optimize"}, 0.87, "Consolidate to 'improve'"},
	{"explain", []string{"describe", "clarify"}, 0.84, "Consolidate to 'explain'"},
	{"provide", []string{"give", "supply"}, 0.86, "Consolidate to 'provide'"},
	{"create", []string{"make", "build", "generate"}, 0.83, "Consolidate to 'create'"},
	{"identify", []string{"find", "locate", "detect"}, 0.82, "Consolidate to 'identify'"},
}

// mandarinSubstitutions lists only substitutions proven not to increase
// token count under cl100k_base; everything here is Mandarin-tokens <=
// English-tokens.
var mandarinSubstitutions = []seedPattern{
	{"mandarin", "verify", "验证", 0.94, "Verify - equal tokens, unambiguous meaning"},
	{"mandarin", "comprehensive", "全面", 0.90, "Comprehensive - equal tokens, clear meaning"},
	{"mandarin", "optimization", "优化", 0.93, "Optimization - equal tokens, technical term"},
	{"mandarin", "step by step", "逐步", 0.92, "Step by step - equal tokens, sequential"},
	{"mandarin", "issues", "问题", 0.92, "Issues - equal tokens, clear"},
	{"mandarin", "bugs", "错误", 0.93, "Bugs - equal tokens, unambiguous"},
	{"mandarin", "code", "代码", 0.94, "Code - equal tokens, technical term"},
}

// SeedPatterns returns the catalog's starter pattern set, ready for
// db.InsertPattern. Regex/replacement syntax is stdlib regexp (RE2), so
// capture-group replacements use Go's "${1}" syntax rather than PCRE's "$1".
func SeedPatterns() []*catalog.Pattern {
	var out []*catalog.Pattern
	for _, group := range [][]seedPattern{
		boilerplatePatterns, fillerPatterns, instructionPatterns,
		redundantPatterns, structuralPatterns, mandarinSubstitutions,
	} {
		for _, p := range group {
			out = append(out, &catalog.Pattern{
				PatternType:    p.patternType,
				RegexPattern:   p.regex,
				Replacement:    p.replacement,
				BaseConfidence: p.confidence,
				Reasoning:      p.reasoning,
				Enabled:        true,
			})
		}
	}
	return out
}

// SeedConcepts returns a small starter concept catalog (C3) pairing common
// technical/everyday concepts with their English and Mandarin surface forms,
// used to exercise the Concept Engine's cross-lingual substitution path.
type SeedConcept struct {
	Concept      *catalog.Concept
	SurfaceForms []*catalog.SurfaceForm
}

func SeedConcepts() []SeedConcept {
	mk := func(qid, label, desc, category string, forms ...*catalog.SurfaceForm) SeedConcept {
		return SeedConcept{
			Concept:      &catalog.Concept{QID: qid, LabelEn: label, Description: desc, Category: category},
			SurfaceForms: forms,
		}
	}
	form := func(qid, tokenizerID, lang, text string, tokens, chars int) *catalog.SurfaceForm {
		return &catalog.SurfaceForm{QID: qid, TokenizerID: tokenizerID, Lang: lang, Form: text, TokenCount: tokens, CharCount: chars}
	}
	return []SeedConcept{
		mk("Q11862829", "code", "computer code", "technical",
			form("Q11862829", "cl100k_base", "en", "code", 1, 4),
			form("Q11862829", "cl100k_base", "zh", "代码", 1, 2)),
		mk("Q1931388", "bug", "software defect", "technical",
			form("Q1931388", "cl100k_base", "en", "bug", 1, 3),
			form("Q1931388", "cl100k_base", "zh", "错误", 1, 2)),
		mk("Q170585", "error", "software error", "technical",
			form("Q170585", "cl100k_base", "en", "error", 1, 5),
			form("Q170585", "cl100k_base", "zh", "错误", 1, 2)),
		mk("Q188888", "verification", "act of verifying", "technical",
			form("Q188888", "cl100k_base", "en", "verification", 2, 12),
			form("Q188888", "cl100k_base", "zh", "验证", 1, 2)),
	}
}
