package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// DefaultConfidenceThreshold is used when a request omits confidence_threshold.
	DefaultConfidenceThreshold float64 `json:"default_confidence_threshold,omitempty" yaml:"default_confidence_threshold,omitempty"`

	// ConfidenceFloor is the fixed minimum below which a candidate is
	// discarded outright rather than deferred for review.
	ConfidenceFloor float64 `json:"confidence_floor,omitempty" yaml:"confidence_floor,omitempty"`

	// AggressiveThresholdFloor is the effective threshold floor applied
	// when a request sets aggressive=true.
	AggressiveThresholdFloor float64 `json:"aggressive_threshold_floor,omitempty" yaml:"aggressive_threshold_floor,omitempty"`

	// DefaultProtectionPolicy is used when a request omits protection_policy.
	// One of "conservative", "aggressive".
	DefaultProtectionPolicy string `json:"default_protection_policy,omitempty" yaml:"default_protection_policy,omitempty"`

	// DefaultTokenizerID is used when a request omits tokenizer_id.
	DefaultTokenizerID string `json:"default_tokenizer_id,omitempty" yaml:"default_tokenizer_id,omitempty"`

	// CacheCapacity bounds the optimization cache's LRU size.
	CacheCapacity int `json:"cache_capacity,omitempty" yaml:"cache_capacity,omitempty"`

	// AllowedPaths is merged across config layers but not read anywhere
	// else in promptshrink; it is kept so existing config files still parse.
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths is merged across config layers but not read anywhere
	// else in promptshrink; it is kept so existing config files still parse.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledTypes is merged across config layers but not read anywhere
	// else in promptshrink; it is kept so existing config files still parse.
	DisabledTypes []string `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultConfidenceThreshold: 0.85,
		ConfidenceFloor:            0.50,
		AggressiveThresholdFloor:   0.70,
		DefaultProtectionPolicy:    "conservative",
		DefaultTokenizerID:         "cl100k_base",
		CacheCapacity:              1000,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.promptshrink.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.promptshrink) and repo
// (.promptshrink) directories.
// Repo config is found by walking upward from startDir to find the nearest
// .promptshrink/config.json. Repo config takes precedence for scalar values;
// arrays are merged (deduplicated). Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest
// .promptshrink/config.json. Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".promptshrink", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadYAMLOverlay reads a YAML config file and returns it as an overlay
// config suitable for Merge. JSON remains the primary on-disk format
// (Load/LoadWithRepo); this exists for the CLI's --config flag, which
// accepts either extension.
func LoadYAMLOverlay(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DefaultConfidenceThreshold = overlay.DefaultConfidenceThreshold
	if result.DefaultConfidenceThreshold == 0 {
		result.DefaultConfidenceThreshold = base.DefaultConfidenceThreshold
	}

	result.ConfidenceFloor = overlay.ConfidenceFloor
	if result.ConfidenceFloor == 0 {
		result.ConfidenceFloor = base.ConfidenceFloor
	}

	result.AggressiveThresholdFloor = overlay.AggressiveThresholdFloor
	if result.AggressiveThresholdFloor == 0 {
		result.AggressiveThresholdFloor = base.AggressiveThresholdFloor
	}

	result.DefaultProtectionPolicy = overlay.DefaultProtectionPolicy
	if result.DefaultProtectionPolicy == "" {
		result.DefaultProtectionPolicy = base.DefaultProtectionPolicy
	}

	result.DefaultTokenizerID = overlay.DefaultTokenizerID
	if result.DefaultTokenizerID == "" {
		result.DefaultTokenizerID = base.DefaultTokenizerID
	}

	result.CacheCapacity = overlay.CacheCapacity
	if result.CacheCapacity == 0 {
		result.CacheCapacity = base.CacheCapacity
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
