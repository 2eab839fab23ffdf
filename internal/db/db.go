package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/promptshrink/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/promptshrink.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.promptshrink.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Create exports subdirectory (no promptshrink command reads or writes it)
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "promptshrink.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
// Call after Init if you need to tune pool behavior for contention.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS patterns (
		  id              INTEGER PRIMARY KEY AUTOINCREMENT,
		  pattern_type    TEXT NOT NULL,
		  regex_pattern   TEXT NOT NULL,
		  replacement     TEXT NOT NULL,
		  base_confidence REAL NOT NULL,
		  reasoning       TEXT NOT NULL,
		  enabled         INTEGER NOT NULL DEFAULT 1,
		  applied_count   INTEGER NOT NULL DEFAULT 0,
		  accepted_count  INTEGER NOT NULL DEFAULT 0,
		  rejected_count  INTEGER NOT NULL DEFAULT 0,
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_patterns_type
		ON patterns(pattern_type)
		WHERE enabled = 1;

		CREATE INDEX IF NOT EXISTS idx_patterns_confidence
		ON patterns(base_confidence DESC)
		WHERE enabled = 1;

		CREATE TABLE IF NOT EXISTS feedback_decisions (
		  id               INTEGER PRIMARY KEY AUTOINCREMENT,
		  pattern_id       INTEGER REFERENCES patterns(id) ON DELETE CASCADE,
		  concept_qid      TEXT,
		  session_id       TEXT NOT NULL,
		  original_text    TEXT NOT NULL,
		  optimized_text   TEXT NOT NULL,
		  decision         TEXT NOT NULL,
		  user_alternative TEXT,
		  token_savings    INTEGER NOT NULL DEFAULT 0,
		  context_before   TEXT,
		  context_after    TEXT,
		  created_at       INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_feedback_pattern
		ON feedback_decisions(pattern_id);

		CREATE INDEX IF NOT EXISTS idx_feedback_concept
		ON feedback_decisions(concept_qid);

		CREATE TABLE IF NOT EXISTS concepts (
		  qid          TEXT PRIMARY KEY,
		  label_en     TEXT NOT NULL,
		  description  TEXT,
		  category     TEXT,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_concepts_label
		ON concepts(label_en COLLATE NOCASE);

		CREATE TABLE IF NOT EXISTS surface_forms (
		  id            INTEGER PRIMARY KEY AUTOINCREMENT,
		  qid           TEXT NOT NULL REFERENCES concepts(qid) ON DELETE CASCADE,
		  tokenizer_id  TEXT NOT NULL,
		  lang          TEXT NOT NULL,
		  form          TEXT NOT NULL,
		  token_count   INTEGER NOT NULL,
		  char_count    INTEGER NOT NULL,
		  UNIQUE(qid, tokenizer_id, lang, form)
		);

		CREATE INDEX IF NOT EXISTS idx_surface_forms_qid_tokenizer
		ON surface_forms(qid, tokenizer_id, token_count ASC);

		CREATE TABLE IF NOT EXISTS optimization_cache (
		  cache_key       TEXT PRIMARY KEY,
		  prompt_hash     TEXT NOT NULL,
		  tokenizer_id    TEXT NOT NULL,
		  result_json     TEXT NOT NULL,
		  created_at      INTEGER NOT NULL,
		  last_accessed   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_optimization_cache_accessed
		ON optimization_cache(last_accessed ASC);

		CREATE TABLE IF NOT EXISTS metadata (
		  key   TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
