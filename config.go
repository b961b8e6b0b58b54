package docmind

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the docmind core.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.docmind/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "docmind".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.docmind/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// Retrieval
	TopK                int     `json:"top_k" yaml:"top_k"`                               // default result count per query
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"` // minimum similarity for a source
	VectorWeight        float64 `json:"vector_weight" yaml:"vector_weight"`               // coefficient for vector distance in hybrid ordering
	KeywordWeight       float64 `json:"keyword_weight" yaml:"keyword_weight"`             // coefficient for keyword rank hint

	// Answer synthesis
	ContextBudget int `json:"context_budget" yaml:"context_budget"` // max context characters sent to the chat model
	HistoryTurns  int `json:"history_turns" yaml:"history_turns"`   // recent conversation turns prepended to the prompt

	// Extraction scheduler
	ScanIntervalSec  int `json:"scan_interval_sec" yaml:"scan_interval_sec"`   // seconds between batch scans
	BatchSize        int `json:"batch_size" yaml:"batch_size"`                 // documents fetched per batch
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`   // consecutive failures before aborting a batch
	CommitEvery      int `json:"commit_every" yaml:"commit_every"`             // documents between partial progress commits
	FastPaceMs       int `json:"fast_pace_ms" yaml:"fast_pace_ms"`             // per-document delay when a local model is reachable
	SlowPaceMs       int `json:"slow_pace_ms" yaml:"slow_pace_ms"`             // per-document delay on a rate-limited remote backend

	// Canonical entity resolution
	FuzzyThreshold float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold"` // minimum containment ratio for a fuzzy match

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.docmind/docmind.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "docmind",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "qwen2.5:7b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		TopK:                5,
		SimilarityThreshold: 0.3,
		VectorWeight:        1.0,
		KeywordWeight:       0.5,
		ContextBudget:       8000,
		HistoryTurns:        6,
		ScanIntervalSec:     60,
		BatchSize:           20,
		FailureThreshold:    5,
		CommitEvery:         5,
		FastPaceMs:          500,
		SlowPaceMs:          3000,
		FuzzyThreshold:      0.6,
		EmbeddingDim:        768,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "docmind"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".docmind")
		return filepath.Join(dir, name+".db")
	}
}
