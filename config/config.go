// Package config loads the run configuration from YAML, applies defaults
// and validates the combination before any component starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and tunes the language-model backend.
type LLMConfig struct {
	// Provider is "openai"; the api key falls back to OPENAI_API_KEY.
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// StoreConfig selects the snapshot backend.
type StoreConfig struct {
	// Backend is one of memory, file, sqlite, postgres, redis.
	Backend string `yaml:"backend"`
	// Path is the directory (file) or database file (sqlite).
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
	// Addr is the redis host:port.
	Addr string `yaml:"addr"`
	// TTL bounds redis snapshot retention; zero keeps snapshots forever.
	TTL time.Duration `yaml:"ttl"`
}

// GraphConfig selects the graph source.
type GraphConfig struct {
	// Path points at a JSON file with "nodes" and "edges" arrays.
	Path string `yaml:"path"`
}

// ExecutorConfig bounds the analysis loop.
type ExecutorConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	MaxRetries    int `yaml:"max_retries"`
}

// LimitsConfig caps graph traversals.
type LimitsConfig struct {
	MaxDepth          int `yaml:"max_depth"`
	MaxTraversalNodes int `yaml:"max_traversal_nodes"`
	MaxPathLength     int `yaml:"max_path_length"`
	MaxShowItems      int `yaml:"max_show_items"`
}

// Config is the full run configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Store    StoreConfig    `yaml:"store"`
	Graph    GraphConfig    `yaml:"graph"`
	Executor ExecutorConfig `yaml:"executor"`
	Limits   LimitsConfig   `yaml:"limits"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LLM:      LLMConfig{Provider: "openai"},
		Store:    StoreConfig{Backend: "memory"},
		Executor: ExecutorConfig{MaxIterations: 10, MaxRetries: 2},
		Limits: LimitsConfig{
			MaxDepth:          4,
			MaxTraversalNodes: 1000,
			MaxPathLength:     5,
			MaxShowItems:      10,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations that would fail later at runtime.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store backend %q requires path", c.Store.Backend)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store backend postgres requires dsn")
		}
	case "redis":
		if c.Store.Addr == "" {
			return fmt.Errorf("store backend redis requires addr")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.LLM.Provider != "openai" {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Executor.MaxIterations <= 0 {
		return fmt.Errorf("executor max_iterations must be positive")
	}
	if c.Executor.MaxRetries < 0 {
		return fmt.Errorf("executor max_retries must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Map renders the config for the state document's replay block, with the
// API key left out.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"llm": map[string]any{
			"provider":    c.LLM.Provider,
			"model":       c.LLM.Model,
			"temperature": c.LLM.Temperature,
		},
		"store": map[string]any{"backend": c.Store.Backend},
		"graph": map[string]any{"path": c.Graph.Path},
		"executor": map[string]any{
			"max_iterations": c.Executor.MaxIterations,
			"max_retries":    c.Executor.MaxRetries,
		},
		"limits": map[string]any{
			"max_depth":           c.Limits.MaxDepth,
			"max_traversal_nodes": c.Limits.MaxTraversalNodes,
			"max_path_length":     c.Limits.MaxPathLength,
			"max_show_items":      c.Limits.MaxShowItems,
		},
	}
}
