package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	require.Len(t, cfg.Backends, 3)
	assert.Equal(t, "claude-3-5-sonnet", cfg.Backends[0].Name)
	assert.Equal(t, "ollama", cfg.Backends[2].Kind)
	assert.Equal(t, 3, cfg.HTTP.MaxAttempts)
	assert.Equal(t, "1s", cfg.HTTP.InitialBackoff)
	assert.Equal(t, "terrarisk.db", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Review.Concurrency)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
backends:
  - name: only-local
    model: llama3:8b
    kind: ollama
    maxTokens: 1024
    temperature: 0.2
    priority: 0
    enabled: true
http:
  maxAttempts: 7
store:
  path: /tmp/reviews.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trisk.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "only-local", cfg.Backends[0].Name)
	assert.Equal(t, 1024, cfg.Backends[0].MaxTokens)
	assert.Equal(t, 7, cfg.HTTP.MaxAttempts)
	assert.Equal(t, "/tmp/reviews.db", cfg.Store.Path)
	// Untouched sections keep their defaults.
	assert.Equal(t, "1s", cfg.HTTP.InitialBackoff)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	content := `
anthropic:
  apiKey: ${TEST_TRISK_KEY}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trisk.yaml"), []byte(content), 0o644))
	t.Setenv("TEST_TRISK_KEY", "sk-test-123")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.Anthropic.APIKey)
}

func TestLoadUnexpandedVarKeptVerbatim(t *testing.T) {
	dir := t.TempDir()
	content := `
anthropic:
  apiKey: ${TEST_TRISK_UNSET_KEY}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trisk.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "${TEST_TRISK_UNSET_KEY}", cfg.Anthropic.APIKey)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trisk.yaml"), []byte("backends: ["), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	assert.Error(t, err)
}
