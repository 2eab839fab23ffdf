package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/rewrite"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// setupTestDB creates a temporary database for testing, seeded with the
// starter pattern and concept catalog.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := seedIfEmpty(database); err != nil {
		t.Fatalf("failed to seed test db: %v", err)
	}
	return database
}

// withStdin temporarily replaces os.Stdin with a pipe carrying data, and
// restores it afterward.
func withStdin(t *testing.T, data string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	if _, err := w.WriteString(data); err != nil {
		t.Fatalf("write to pipe error = %v", err)
	}
	w.Close()

	original := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = original })
}

func TestOptimizeCmd_RunsWithAggressiveFlag(t *testing.T) {
	database := setupTestDB(t)
	cfg := config.DefaultConfig()
	tokenizers := tokenizer.NewRegistry()

	withStdin(t, "Please could you kindly help me debug this error?")

	app := newCLIApp(database, cfg, tokenizers)
	if err := app.Run([]string{"promptshrink", "optimize", "--tokenizer", "word_heuristic", "--aggressive"}); err != nil {
		t.Fatalf("app.Run() error = %v", err)
	}
}

func TestOptimizeCmd_RequiresStdin(t *testing.T) {
	database := setupTestDB(t)
	cfg := config.DefaultConfig()
	tokenizers := tokenizer.NewRegistry()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	w.Close()
	original := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = original }()

	app := newCLIApp(database, cfg, tokenizers)
	err = app.Run([]string{"promptshrink", "optimize"})
	if err == nil {
		t.Fatal("app.Run() expected error for missing stdin")
	}
}

func TestPatternsListCmd(t *testing.T) {
	database := setupTestDB(t)
	cfg := config.DefaultConfig()
	tokenizers := tokenizer.NewRegistry()

	app := newCLIApp(database, cfg, tokenizers)
	if err := app.Run([]string{"promptshrink", "patterns", "list"}); err != nil {
		t.Fatalf("app.Run() error = %v", err)
	}

	patterns, err := db.LoadPatterns(database)
	if err != nil {
		t.Fatalf("LoadPatterns() error = %v", err)
	}
	if len(patterns) != len(rewrite.SeedPatterns()) {
		t.Errorf("pattern count = %d, want %d", len(patterns), len(rewrite.SeedPatterns()))
	}
}

func TestConceptsListCmd(t *testing.T) {
	database := setupTestDB(t)
	cfg := config.DefaultConfig()
	tokenizers := tokenizer.NewRegistry()

	app := newCLIApp(database, cfg, tokenizers)
	if err := app.Run([]string{"promptshrink", "concepts", "list"}); err != nil {
		t.Fatalf("app.Run() error = %v", err)
	}
}

func TestOutputJSON(t *testing.T) {
	type sample struct {
		Name string `json:"name"`
	}
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()

	if err := outputJSON(sample{Name: "test"}); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)

	var decoded sample
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded.Name != "test" {
		t.Errorf("Name = %q, want %q", decoded.Name, "test")
	}
}

func TestIsCLIMode(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"promptshrink"}, false},
		{[]string{"promptshrink", "optimize"}, true},
		{[]string{"promptshrink", "patterns"}, true},
		{[]string{"promptshrink", "serve"}, true},
		{[]string{"promptshrink", "--help"}, true},
		{[]string{"promptshrink", "bogus"}, false},
	}
	for _, tt := range tests {
		os.Args = tt.args
		if got := isCLIMode(); got != tt.want {
			t.Errorf("isCLIMode() with args %v = %v, want %v", tt.args, got, tt.want)
		}
	}
}
