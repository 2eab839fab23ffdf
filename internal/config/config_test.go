package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultConfidenceThreshold != DefaultConfig().DefaultConfidenceThreshold {
		t.Fatalf("DefaultConfidenceThreshold = %v, want %v", cfg.DefaultConfidenceThreshold, DefaultConfig().DefaultConfidenceThreshold)
	}
	if cfg.CacheCapacity != 1000 {
		t.Fatalf("CacheCapacity = %d, want 1000", cfg.CacheCapacity)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"default_confidence_threshold": 0.9}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultConfidenceThreshold != 0.9 {
		t.Fatalf("DefaultConfidenceThreshold = %v, want 0.9", cfg.DefaultConfidenceThreshold)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["prompt_feedback", "prompt_patterns_list"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "prompt_feedback" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "prompt_feedback")
	}
}

func TestLoad_DisabledToolsEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 0 {
		t.Fatalf("DisabledTools = %v, want nil or empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"default_confidence_threshold": 0.8, "disabled_tools": ["prompt_feedback"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".promptshrink")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"default_confidence_threshold": 0.95, "disabled_tools": ["prompt_patterns_list"]}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.DefaultConfidenceThreshold != 0.95 {
		t.Errorf("DefaultConfidenceThreshold = %v, want 0.95 (repo override)", cfg.DefaultConfidenceThreshold)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.DefaultConfidenceThreshold != 0.85 {
		t.Errorf("DefaultConfidenceThreshold = %v, want 0.85", cfg.DefaultConfidenceThreshold)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{DefaultConfidenceThreshold: 0.8, DBMaxOpenConns: 5}
	overlay := &Config{DefaultConfidenceThreshold: 0.95}

	result := Merge(base, overlay)

	if result.DefaultConfidenceThreshold != 0.95 {
		t.Errorf("DefaultConfidenceThreshold = %v, want 0.95 (overlay)", result.DefaultConfidenceThreshold)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{AllowUnsafePaths: true}
	overlay := &Config{AllowUnsafePaths: false}

	result := Merge(base, overlay)

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"prompt_feedback", "prompt_patterns_list"}}
	overlay := &Config{DisabledTools: []string{"prompt_patterns_list", "prompt_concepts_list"}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}
}

func TestFindRepoConfig_InCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()
	repoDir := filepath.Join(tmpDir, ".promptshrink")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(repoDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	found := FindRepoConfig(tmpDir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	repoDir := filepath.Join(tmpDir, ".promptshrink")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(repoDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	found := FindRepoConfig(subdir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	found := FindRepoConfig(tmpDir)
	if found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}
