// Package config holds the sidecar's tunable settings. Everything has a
// working default; a YAML file can override any field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full sidecar configuration.
type Config struct {
	// DataDir is where the shared registry and all per-project stores live.
	DataDir    string           `yaml:"data_dir"`
	Context    ContextConfig    `yaml:"context"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// ContextConfig sets the defaults for context assembly.
type ContextConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	RecentLimit   int `yaml:"recent_limit"`
	RelationLimit int `yaml:"relation_limit"`
	SemanticLimit int `yaml:"semantic_limit"`
}

// EmbeddingConfig configures the local embedder and its cache.
type EmbeddingConfig struct {
	Dimensions int   `yaml:"dimensions"`
	CacheSize  int64 `yaml:"cache_size"`
}

// ExtractionConfig selects the triple extraction strategy.
type ExtractionConfig struct {
	// Provider is "heuristic" (local patterns) or "llm" (Anthropic API).
	Provider string `yaml:"provider"`
	// Model names the Anthropic model for the llm provider.
	Model string `yaml:"model"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir: "./data",
		Context: ContextConfig{
			MaxTokens:     2000,
			RecentLimit:   20,
			RelationLimit: 10,
			SemanticLimit: 5,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 384,
			CacheSize:  4096,
		},
		Extraction: ExtractionConfig{
			Provider: "heuristic",
		},
	}
}

// Load reads a YAML config file over the defaults, so a partial file only
// overrides the fields it names.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.DataDir == "" {
		return cfg, fmt.Errorf("config: data_dir must not be empty")
	}
	if cfg.Context.MaxTokens <= 0 {
		return cfg, fmt.Errorf("config: context.max_tokens must be positive, got %d", cfg.Context.MaxTokens)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return cfg, fmt.Errorf("config: embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	return cfg, nil
}
