package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  model: gpt-4o-mini
  temperature: 0.2
store:
  backend: sqlite
  path: /tmp/runs.db
executor:
  max_iterations: 5
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Executor.MaxIterations)
	// Untouched sections keep their defaults.
	assert.Equal(t, 2, cfg.Executor.MaxRetries)
	assert.Equal(t, 4, cfg.Limits.MaxDepth)
}

func TestLoad_RejectsIncompleteBackend(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: postgres
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "requires dsn")
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: etcd
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestValidate_DefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestMap_OmitsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "secret"
	m := cfg.Map()
	llm := m["llm"].(map[string]any)
	_, exists := llm["api_key"]
	assert.False(t, exists)
}
