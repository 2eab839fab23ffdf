package optimize

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/promptshrink/internal/catalog"
	"github.com/hpungsan/promptshrink/internal/confidence"
	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/errors"
	"github.com/hpungsan/promptshrink/internal/overlap"
	"github.com/hpungsan/promptshrink/internal/protect"
	"github.com/hpungsan/promptshrink/internal/rewrite"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// Pipeline wires the Tokenizer Registry, Pattern and Concept Engines,
// Confidence Calibrator, and Overlap Resolver into the orchestrator
// described by spec.md §4.9.
type Pipeline struct {
	DB         *sql.DB
	Config     *config.Config
	Tokenizers *tokenizer.Registry
}

// New builds a Pipeline over an initialized database and config.
func New(database *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Pipeline{DB: database, Config: cfg, Tokenizers: tokenizers}
}

// Run is the single entry point both internal/web and internal/mcp call
// into: a thin wrapper over Pipeline.Optimize matching this codebase's
// ops.<Verb>(db, cfg, input) calling convention.
func Run(ctx context.Context, database *sql.DB, cfg *config.Config, tokenizers *tokenizer.Registry, req Request) (*Result, error) {
	return New(database, cfg, tokenizers).Optimize(ctx, req)
}

// Optimize runs a single request through the full pipeline: C4 (protect) ->
// C5/C6 (pattern/concept engines, unioned) -> C8 (calibrate) -> C7
// (overlap resolve) -> post-process -> measure. Cancellation is checked at
// each of those five transitions, per spec.md §5.
func (p *Pipeline) Optimize(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	tokenizerID := req.TokenizerID
	if tokenizerID == "" {
		tokenizerID = p.Config.DefaultTokenizerID
	}
	if _, err := p.Tokenizers.Get(tokenizerID); err != nil {
		return nil, err
	}

	selectionPolicy := req.SelectionPolicy
	if selectionPolicy == "" {
		selectionPolicy = SelectionMinTokens
	}

	cacheKey := makeCacheKey(req.Prompt, tokenizerID, selectionPolicy)
	if p.DB != nil {
		if cached, hit, err := db.CacheGet(p.DB, cacheKey); err == nil && hit {
			var result Result
			if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
				return &result, nil
			}
		}
	}

	patternRecords, err := db.LoadPatterns(p.DB)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to load pattern catalog: " + err.Error())
	}
	patternEngine := rewrite.NewPatternEngine(patternRecords)
	if len(patternRecords) > 0 && patternEngine.PatternCount() == 0 {
		return nil, errors.NewConfigurationError("no catalog pattern compiled successfully")
	}
	appliedCount := make(map[int64]int64, len(patternRecords))
	for _, rec := range patternRecords {
		appliedCount[rec.ID] = rec.AppliedCount
	}

	protectionPolicy := protect.Policy(req.ProtectionPolicy)
	if protectionPolicy == "" {
		protectionPolicy = protect.Policy(p.Config.DefaultProtectionPolicy)
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	detector := protect.NewDetector(protectionPolicy)
	regions := detector.Detect(req.Prompt)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	patternCandidates := patternEngine.Detect(req.Prompt, regions)
	for _, c := range patternCandidates {
		if c.PatternID != nil && p.DB != nil {
			_ = db.RecordPatternApplication(p.DB, *c.PatternID)
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	conceptEngine := rewrite.NewConceptEngine(
		conceptResolverFor(p.DB),
		surfaceFormsFor(p.DB),
		rewrite.ResolveNormalized,
		tokenizerID,
		mustBackend(p.Tokenizers, tokenizerID),
		req.OutputLanguage,
	)
	conceptCandidates := conceptEngine.Detect(req.Prompt, regions)

	candidates := append(patternCandidates, conceptCandidates...)

	effectiveThreshold := req.ConfidenceThreshold
	if effectiveThreshold == 0 {
		effectiveThreshold = p.Config.DefaultConfidenceThreshold
	}
	if req.Aggressive && effectiveThreshold > p.Config.AggressiveThresholdFloor {
		effectiveThreshold = p.Config.AggressiveThresholdFloor
	}

	backend := mustBackend(p.Tokenizers, tokenizerID)

	type scored struct {
		cand  rewrite.Candidate
		score confidence.Score
		delta int
	}
	var eligible []scored
	var deferred []scored

	for _, c := range candidates {
		tokenDelta := backend.CountTokens(c.OriginalText) - backend.CountTokens(c.OptimizedText)
		if tokenDelta <= 0 && !(req.Aggressive && c.IsStructural) {
			continue
		}

		freq := int64(0)
		if c.PatternID != nil {
			freq = appliedCount[*c.PatternID]
		}
		calibrator := confidence.NewCalibrator(func(string) int64 { return freq })
		confCand := confidence.Candidate{
			Type:           c.Type,
			OriginalText:   c.OriginalText,
			OptimizedText:  c.OptimizedText,
			BaseConfidence: c.BaseConfidence,
		}
		confCtx := confidence.ExtractContext(req.Prompt, c.Start, c.End, 50)
		score := calibrator.Calculate(confCand, confCtx)

		s := scored{cand: c, score: score, delta: tokenDelta}
		switch {
		case score.FinalConfidence < p.Config.ConfidenceFloor:
			// Below the floor: discarded outright, not even deferred.
		case score.FinalConfidence < effectiveThreshold:
			deferred = append(deferred, s)
		default:
			eligible = append(eligible, s)
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	overlapCandidates := make([]overlap.Candidate, len(eligible))
	for i, s := range eligible {
		overlapCandidates[i] = overlap.Candidate{Start: s.cand.Start, End: s.cand.End, TokenDelta: s.delta, Confidence: s.score.FinalConfidence}
	}
	chosenIdx := overlap.Resolve(overlapCandidates)
	chosen := make([]scored, len(chosenIdx))
	for i, idx := range chosenIdx {
		chosen[i] = eligible[idx]
	}
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].cand.Start > chosen[j].cand.Start })

	applied := make([]Rewrite, 0, len(chosen))
	optimizedText := req.Prompt
	for _, s := range chosen {
		candidate := optimizedText[:s.cand.Start] + s.cand.OptimizedText + optimizedText[s.cand.End:]
		if !utf8.ValidString(candidate) {
			continue // abort this single rewrite only, per spec.md §4.9 failure semantics
		}
		optimizedText = candidate
		applied = append(applied, toRewrite(s.cand, s.score.FinalConfidence, s.delta))
	}
	sort.Slice(applied, func(i, j int) bool { return applied[i].Start < applied[j].Start })

	optimizedText = postProcess(optimizedText)
	directive := directiveText(req.DirectiveFormat, req.OutputLanguage)
	optimizedText = appendDirective(optimizedText, directive)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	originalTokens, err := p.Tokenizers.Count(tokenizerID, req.Prompt)
	if err != nil {
		return nil, err
	}
	optimizedTokens, err := p.Tokenizers.Count(tokenizerID, optimizedText)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Original:        req.Prompt,
		Optimized:       optimizedText,
		OriginalTokens:  originalTokens,
		OptimizedTokens: optimizedTokens,
		Delta:           originalTokens - optimizedTokens,
		Applied:         applied,
	}
	if originalTokens > 0 {
		result.DeltaFraction = float64(result.Delta) / float64(originalTokens)
	}

	if len(deferred) > 0 {
		result.Deferred = make([]Rewrite, 0, len(deferred))
		for _, s := range deferred {
			result.Deferred = append(result.Deferred, toRewrite(s.cand, s.score.FinalConfidence, s.delta))
		}
		sessionID := newReviewSessionID()
		result.ReviewSessionID = &sessionID
	}

	if p.DB != nil {
		if payload, err := json.Marshal(result); err == nil {
			promptHash := sha256Hex(req.Prompt)
			_ = db.CachePut(p.DB, cacheKey, promptHash, tokenizerID, string(payload), p.Config.CacheCapacity)
		}
	}

	return result, nil
}

func toRewrite(c rewrite.Candidate, finalConfidence float64, tokenDelta int) Rewrite {
	return Rewrite{
		Start:              c.Start,
		End:                c.End,
		SourceKind:         string(c.Type),
		Original:           c.OriginalText,
		Replacement:        c.OptimizedText,
		BaseConfidence:     c.BaseConfidence,
		FinalConfidence:    finalConfidence,
		Origin:             Origin{PatternID: c.PatternID, ConceptQID: c.ConceptQID},
		TokenDeltaEstimate: tokenDelta,
	}
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return errors.NewTimeout()
		}
		return errors.NewCancelled()
	default:
		return nil
	}
}

func mustBackend(reg *tokenizer.Registry, id string) tokenizer.Backend {
	b, _ := reg.Get(id)
	return b
}

func conceptResolverFor(database *sql.DB) rewrite.ResolveLabelFunc {
	return func(label string) (*catalog.Concept, error) {
		return db.FindConceptByLabel(database, label)
	}
}

func surfaceFormsFor(database *sql.DB) rewrite.SurfaceFormsFunc {
	return func(qid, tokenizerID string) ([]*catalog.SurfaceForm, error) {
		return db.GetSurfaceForms(database, qid, tokenizerID)
	}
}

func makeCacheKey(original, tokenizerID string, policy SelectionPolicy) string {
	h := sha256.New()
	h.Write([]byte(original))
	h.Write([]byte{0})
	h.Write([]byte(tokenizerID))
	h.Write([]byte{0})
	h.Write([]byte(policy))
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Hex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func newReviewSessionID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
