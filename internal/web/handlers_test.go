package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/rewrite"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

func seededDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	for _, p := range rewrite.SeedPatterns() {
		if err := db.InsertPattern(database, p); err != nil {
			t.Fatalf("InsertPattern() error = %v", err)
		}
	}
	return database
}

func setupTest(t *testing.T) *Handlers {
	t.Helper()

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("fs.Sub(templates) error = %v", err)
	}

	return &Handlers{
		db:         seededDB(t),
		cfg:        config.DefaultConfig(),
		tokenizers: tokenizer.NewRegistry(),
		renderer:   NewRenderer(templateSub, "test"),
	}
}

func TestHandleOptimizeForm_GET(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/optimize", nil)
	w := httptest.NewRecorder()
	h.HandleOptimizeForm(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Optimize a prompt") {
		t.Error("expected form page body to mention the page title")
	}
}

func TestHandleOptimizeForm_POST(t *testing.T) {
	h := setupTest(t)

	form := url.Values{}
	form.Set("prompt", "Please could you kindly help me debug this error?")
	form.Set("tokenizer_id", "word_heuristic")
	form.Set("directive_format", "none")
	form.Set("aggressive", "true")

	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.HandleOptimizeForm(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Result") {
		t.Error("expected rendered result section")
	}
}

func TestHandleOptimizeAPI_JSON(t *testing.T) {
	h := setupTest(t)

	body, _ := json.Marshal(optimizeWireRequest{
		Prompt:      "Please could you kindly help me debug this error?",
		TokenizerID: "word_heuristic",
		Aggressive:  true,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleOptimizeAPI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var result struct {
		Original  string `json:"original"`
		Optimized string `json:"optimized"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if result.Original == "" {
		t.Error("expected non-empty original field")
	}
}

func TestHandleOptimizeAPI_InvalidJSON(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.HandleOptimizeAPI(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlePatternsAPI(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/patterns", nil)
	w := httptest.NewRecorder()
	h.HandlePatternsAPI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var patterns []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &patterns); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(patterns) == 0 {
		t.Error("expected seeded patterns in response")
	}
}

func TestHandleConceptsAPI(t *testing.T) {
	h := setupTest(t)
	for _, sc := range rewrite.SeedConcepts() {
		if err := db.UpsertConcept(h.db, sc.Concept); err != nil {
			t.Fatalf("UpsertConcept() error = %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/concepts", nil)
	w := httptest.NewRecorder()
	h.HandleConceptsAPI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var concepts []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &concepts); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(concepts) == 0 {
		t.Error("expected seeded concepts in response")
	}
}
