package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/promptshrink/internal/catalog"
	"github.com/hpungsan/promptshrink/internal/confidence"
	"github.com/hpungsan/promptshrink/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = errors.NewInvalidRequest("unique constraint violation")

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertPattern stores a new pattern in the catalog.
func InsertPattern(db *sql.DB, p *catalog.Pattern) error {
	now := time.Now().Unix()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO patterns (
			pattern_type, regex_pattern, replacement, base_confidence,
			reasoning, enabled, applied_count, accepted_count, rejected_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)
	`
	res, err := db.Exec(query, p.PatternType, p.RegexPattern, p.Replacement,
		p.BaseConfidence, p.Reasoning, p.Enabled, now, now)
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	p.ID = id
	return nil
}

// LoadPatterns returns all enabled patterns ordered by confidence
// descending, id ascending as a stable tie-break, per spec.md §4.2.
func LoadPatterns(db *sql.DB) ([]*catalog.Pattern, error) {
	return queryPatterns(db, "SELECT id, pattern_type, regex_pattern, replacement, base_confidence, reasoning, enabled, applied_count, accepted_count, rejected_count, created_at, updated_at FROM patterns WHERE enabled = 1 ORDER BY base_confidence DESC, id ASC")
}

// LoadPatternsByType returns enabled patterns of a given pattern type,
// ordered by confidence descending, id ascending.
func LoadPatternsByType(db *sql.DB, patternType string) ([]*catalog.Pattern, error) {
	return queryPatterns(db,
		"SELECT id, pattern_type, regex_pattern, replacement, base_confidence, reasoning, enabled, applied_count, accepted_count, rejected_count, created_at, updated_at FROM patterns WHERE enabled = 1 AND pattern_type = ? ORDER BY base_confidence DESC, id ASC",
		patternType)
}

// LoadPatternsWithMinConfidence returns enabled patterns at or above
// minConfidence, ordered by confidence descending, id ascending.
func LoadPatternsWithMinConfidence(db *sql.DB, minConfidence float64) ([]*catalog.Pattern, error) {
	return queryPatterns(db,
		"SELECT id, pattern_type, regex_pattern, replacement, base_confidence, reasoning, enabled, applied_count, accepted_count, rejected_count, created_at, updated_at FROM patterns WHERE enabled = 1 AND base_confidence >= ? ORDER BY base_confidence DESC, id ASC",
		minConfidence)
}

func queryPatterns(db *sql.DB, query string, args ...any) ([]*catalog.Pattern, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var patterns []*catalog.Pattern
	for rows.Next() {
		p := &catalog.Pattern{}
		if err := rows.Scan(&p.ID, &p.PatternType, &p.RegexPattern, &p.Replacement,
			&p.BaseConfidence, &p.Reasoning, &p.Enabled, &p.AppliedCount,
			&p.AcceptedCount, &p.RejectedCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return patterns, nil
}

// RecordPatternApplication increments a pattern's applied_count.
func RecordPatternApplication(db *sql.DB, patternID int64) error {
	_, err := db.Exec("UPDATE patterns SET applied_count = applied_count + 1, updated_at = ? WHERE id = ?",
		time.Now().Unix(), patternID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RecordFeedback stores a human reviewer's decision and, for patterns,
// rolls the accept/reject tally into the catalog for the next calibration pass.
func RecordFeedback(db *sql.DB, f *catalog.FeedbackDecision) error {
	f.CreatedAt = time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO feedback_decisions (
			pattern_id, concept_qid, session_id, original_text, optimized_text,
			decision, user_alternative, token_savings, context_before, context_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := tx.Exec(query, nullInt64(f.PatternID), nullString(f.ConceptQID), f.SessionID,
		f.OriginalText, f.OptimizedText, f.Decision, nullString(f.UserAlternative),
		f.TokenSavings, nullString(f.ContextBefore), nullString(f.ContextAfter), f.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	f.ID = id

	if f.PatternID != nil {
		column := "rejected_count"
		if f.Decision == catalog.DecisionAccept {
			column = "accepted_count"
		}
		if _, err := tx.Exec("UPDATE patterns SET "+column+" = "+column+" + 1, updated_at = ? WHERE id = ?",
			time.Now().Unix(), *f.PatternID); err != nil {
			return errors.NewInternal(err)
		}

		var priorBase float64
		var accepted, rejected int64
		row := tx.QueryRow("SELECT base_confidence, accepted_count, rejected_count FROM patterns WHERE id = ?", *f.PatternID)
		if err := row.Scan(&priorBase, &accepted, &rejected); err != nil {
			return errors.NewInternal(err)
		}

		newBase := confidence.UpdateBaseConfidence(priorBase, accepted, rejected)
		if _, err := tx.Exec("UPDATE patterns SET base_confidence = ?, updated_at = ? WHERE id = ?",
			newBase, time.Now().Unix(), *f.PatternID); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetPatternFeedbackCounts returns (accepted, rejected) counts for a pattern,
// used by the confidence calibrator to recompute base_confidence.
func GetPatternFeedbackCounts(db *sql.DB, patternID int64) (accepted, rejected int64, err error) {
	row := db.QueryRow("SELECT accepted_count, rejected_count FROM patterns WHERE id = ?", patternID)
	if scanErr := row.Scan(&accepted, &rejected); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, 0, errors.NewInvalidRequest("pattern not found")
		}
		return 0, 0, errors.NewInternal(scanErr)
	}
	return accepted, rejected, nil
}

// UpdatePatternConfidence overwrites a pattern's base_confidence, typically
// after the calibrator recomputes it from fresh feedback.
func UpdatePatternConfidence(db *sql.DB, patternID int64, confidence float64) error {
	_, err := db.Exec("UPDATE patterns SET base_confidence = ?, updated_at = ? WHERE id = ?",
		confidence, time.Now().Unix(), patternID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetPatternStats aggregates acceptance/rejection counts per pattern type.
func GetPatternStats(db *sql.DB) ([]*catalog.PatternTypeStats, error) {
	rows, err := db.Query(`
		SELECT pattern_type, COUNT(*), AVG(base_confidence),
			SUM(applied_count), SUM(accepted_count), SUM(rejected_count)
		FROM patterns
		WHERE enabled = 1
		GROUP BY pattern_type
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var stats []*catalog.PatternTypeStats
	for rows.Next() {
		s := &catalog.PatternTypeStats{}
		if err := rows.Scan(&s.PatternType, &s.TotalPatterns, &s.AvgConfidence,
			&s.TotalApplications, &s.TotalAccepted, &s.TotalRejected); err != nil {
			return nil, errors.NewInternal(err)
		}
		if s.TotalAccepted+s.TotalRejected > 0 {
			s.AcceptanceRate = float64(s.TotalAccepted) / float64(s.TotalAccepted+s.TotalRejected)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return stats, nil
}

// UpsertConcept inserts or updates a concept keyed by QID.
func UpsertConcept(db *sql.DB, c *catalog.Concept) error {
	now := time.Now().Unix()
	_, err := db.Exec(`
		INSERT INTO concepts (qid, label_en, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(qid) DO UPDATE SET
			label_en = excluded.label_en,
			description = excluded.description,
			category = excluded.category,
			updated_at = excluded.updated_at
	`, c.QID, c.LabelEn, c.Description, c.Category, now, now)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetConcept retrieves a concept by QID.
func GetConcept(db *sql.DB, qid string) (*catalog.Concept, error) {
	row := db.QueryRow("SELECT qid, label_en, description, category, created_at, updated_at FROM concepts WHERE qid = ?", qid)
	c := &catalog.Concept{}
	err := row.Scan(&c.QID, &c.LabelEn, &c.Description, &c.Category, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewInvalidRequest("concept not found: " + qid)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// ListConcepts returns every concept in the catalog, ordered by label.
func ListConcepts(db *sql.DB) ([]*catalog.Concept, error) {
	rows, err := db.Query("SELECT qid, label_en, description, category, created_at, updated_at FROM concepts ORDER BY label_en ASC")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var concepts []*catalog.Concept
	for rows.Next() {
		c := &catalog.Concept{}
		if err := rows.Scan(&c.QID, &c.LabelEn, &c.Description, &c.Category, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		concepts = append(concepts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return concepts, nil
}

// FindConceptByLabel looks up a concept by case-sensitive exact label
// match. Case-insensitive and normalized-form matches are tier 2
// ("normalized") per spec.md §4.3 and are handled by the concept engine's
// resolveLabel fallback, not here.
func FindConceptByLabel(db *sql.DB, label string) (*catalog.Concept, error) {
	row := db.QueryRow("SELECT qid, label_en, description, category, created_at, updated_at FROM concepts WHERE label_en = ?", label)
	c := &catalog.Concept{}
	err := row.Scan(&c.QID, &c.LabelEn, &c.Description, &c.Category, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// InsertSurfaceForm inserts or refreshes a surface form's token/char counts.
func InsertSurfaceForm(db *sql.DB, f *catalog.SurfaceForm) error {
	_, err := db.Exec(`
		INSERT INTO surface_forms (qid, tokenizer_id, lang, form, token_count, char_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(qid, tokenizer_id, lang, form) DO UPDATE SET
			token_count = excluded.token_count,
			char_count = excluded.char_count
	`, f.QID, f.TokenizerID, f.Lang, f.Form, f.TokenCount, f.CharCount)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSurfaceForms returns all surface forms for a concept under a given
// tokenizer, cheapest (fewest tokens) first.
func GetSurfaceForms(db *sql.DB, qid, tokenizerID string) ([]*catalog.SurfaceForm, error) {
	rows, err := db.Query(`
		SELECT id, qid, tokenizer_id, lang, form, token_count, char_count
		FROM surface_forms
		WHERE qid = ? AND tokenizer_id = ?
		ORDER BY token_count ASC
	`, qid, tokenizerID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var forms []*catalog.SurfaceForm
	for rows.Next() {
		f := &catalog.SurfaceForm{}
		if err := rows.Scan(&f.ID, &f.QID, &f.TokenizerID, &f.Lang, &f.Form, &f.TokenCount, &f.CharCount); err != nil {
			return nil, errors.NewInternal(err)
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return forms, nil
}

// GetCheapestForm returns the lowest-token-cost surface form for a concept
// in the requested tokenizer, or nil if the concept has none.
func GetCheapestForm(db *sql.DB, qid, tokenizerID string) (*catalog.SurfaceForm, error) {
	row := db.QueryRow(`
		SELECT id, qid, tokenizer_id, lang, form, token_count, char_count
		FROM surface_forms
		WHERE qid = ? AND tokenizer_id = ?
		ORDER BY token_count ASC
		LIMIT 1
	`, qid, tokenizerID)
	f := &catalog.SurfaceForm{}
	err := row.Scan(&f.ID, &f.QID, &f.TokenizerID, &f.Lang, &f.Form, &f.TokenCount, &f.CharCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}

// CacheGet returns a previously-computed optimization result JSON for a
// cache key, or "", false if absent. Touches last_accessed on hit.
func CacheGet(db *sql.DB, cacheKey string) (string, bool, error) {
	row := db.QueryRow("SELECT result_json FROM optimization_cache WHERE cache_key = ?", cacheKey)
	var result string
	err := row.Scan(&result)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	_, _ = db.Exec("UPDATE optimization_cache SET last_accessed = ? WHERE cache_key = ?", time.Now().UnixNano(), cacheKey)
	return result, true, nil
}

// CachePut stores a computed optimization result under cacheKey, evicting
// the least-recently-accessed entry if the cache has reached capacity.
func CachePut(db *sql.DB, cacheKey, promptHash, tokenizerID, resultJSON string, capacity int) error {
	now := time.Now()
	_, err := db.Exec(`
		INSERT INTO optimization_cache (cache_key, prompt_hash, tokenizer_id, result_json, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			result_json = excluded.result_json,
			last_accessed = excluded.last_accessed
	`, cacheKey, promptHash, tokenizerID, resultJSON, now.Unix(), now.UnixNano())
	if err != nil {
		return errors.NewInternal(err)
	}

	if capacity > 0 {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM optimization_cache").Scan(&count); err != nil {
			return errors.NewInternal(err)
		}
		if count > capacity {
			_, err := db.Exec(`
				DELETE FROM optimization_cache WHERE cache_key IN (
					SELECT cache_key FROM optimization_cache ORDER BY last_accessed ASC LIMIT ?
				)
			`, count-capacity)
			if err != nil {
				return errors.NewInternal(err)
			}
		}
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
