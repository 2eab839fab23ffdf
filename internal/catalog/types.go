// Package catalog implements the pattern catalog (C2) and concept catalog
// (C3): the regex-backed rewrite rules and cross-lingual concept/surface-form
// tables that the rewrite engines draw candidates from.
package catalog

// Pattern is a regex-backed rewrite rule (boilerplate removal, filler
// removal, instruction compression, format consolidation, ...).
type Pattern struct {
	ID             int64
	PatternType    string
	RegexPattern   string
	Replacement    string
	BaseConfidence float64
	Reasoning      string
	Enabled        bool
	AppliedCount   int64
	AcceptedCount  int64
	RejectedCount  int64
	CreatedAt      int64
	UpdatedAt      int64
}

// Concept is a language-neutral idea identified by a Wikidata-style QID,
// with one or more surface forms per language and tokenizer.
type Concept struct {
	QID         string
	LabelEn     string
	Description string
	Category    string
	CreatedAt   int64
	UpdatedAt   int64
}

// SurfaceForm is one way of expressing a Concept in a given language, with
// its token cost precomputed for a specific tokenizer.
type SurfaceForm struct {
	ID          int64
	QID         string
	TokenizerID string
	Lang        string
	Form        string
	TokenCount  int
	CharCount   int
}

// FeedbackDecision records a human reviewer's disposition of a single
// optimization candidate, feeding the confidence calibrator's priors.
type FeedbackDecision struct {
	ID              int64
	PatternID       *int64
	ConceptQID      *string
	SessionID       string
	OriginalText    string
	OptimizedText   string
	Decision        string // "accept", "reject", "modify"
	UserAlternative *string
	TokenSavings    int64
	ContextBefore   *string
	ContextAfter    *string
	CreatedAt       int64
}

// PatternTypeStats aggregates acceptance/rejection counts per pattern type,
// used by catalog inspection tooling.
type PatternTypeStats struct {
	PatternType       string
	TotalPatterns     int
	AvgConfidence     float64
	TotalApplications int64
	TotalAccepted     int64
	TotalRejected     int64
	AcceptanceRate    float64
}

// Decision string constants for FeedbackDecision.Decision.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
	DecisionModify = "modify"
)
