package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkeller/terrarisk/internal/backend"
)

func TestRegistrySkipsDisabledBackends(t *testing.T) {
	cfg := Config{
		Backends: []BackendConfig{
			{Name: "primary", Model: "claude-3-5-sonnet-20241022", Kind: "anthropic", MaxTokens: 4096, Priority: 0, Enabled: true},
			{Name: "disabled", Model: "gpt-4o", Kind: "openai", MaxTokens: 4096, Priority: 1, Enabled: false},
			{Name: "local", Model: "llama3:70b", Kind: "ollama", MaxTokens: 2048, Priority: 2, Enabled: true},
		},
	}

	registry, err := cfg.Registry()
	require.NoError(t, err)

	descriptors := registry.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, "primary", descriptors[0].Name)
	assert.Equal(t, "local", descriptors[1].Name)
	assert.Equal(t, backend.KindOllama, descriptors[1].Kind)
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	cfg := Config{
		Backends: []BackendConfig{
			{Name: "bad", Model: "x", Kind: "bedrock", MaxTokens: 100, Enabled: true},
		},
	}

	_, err := cfg.Registry()
	assert.ErrorContains(t, err, "unsupported backend kind")
}

func TestRetryConfig(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{
		MaxAttempts:       5,
		InitialBackoff:    "500ms",
		MaxBackoff:        "10s",
		BackoffMultiplier: 3.0,
	}}

	retry, err := cfg.RetryConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, retry.InitialBackoff)
	assert.Equal(t, 10*time.Second, retry.MaxBackoff)
	assert.InDelta(t, 3.0, retry.Multiplier, 1e-9)
}

func TestRetryConfigDefaultsWhenEmpty(t *testing.T) {
	retry, err := Config{}.RetryConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, retry.MaxAttempts)
	assert.Equal(t, time.Second, retry.InitialBackoff)
}

func TestRetryConfigRejectsBadDuration(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{InitialBackoff: "soon"}}

	_, err := cfg.RetryConfig()
	assert.ErrorContains(t, err, "http.initialBackoff")
}

func TestConfidenceTableOverrides(t *testing.T) {
	cfg := Config{Scoring: ScoringConfig{
		ModelConfidence:   map[string]float64{"custom-model": 0.77},
		DefaultConfidence: 0.5,
	}}

	table := cfg.ConfidenceTable()
	assert.InDelta(t, 0.77, table.Base("custom-model"), 1e-9)
	assert.InDelta(t, 0.5, table.Base("unknown"), 1e-9)
}

func TestConfidenceTableDefault(t *testing.T) {
	table := Config{}.ConfidenceTable()
	assert.InDelta(t, 0.95, table.Base("claude-3-5-sonnet"), 1e-9)
	assert.InDelta(t, 0.80, table.Base("unknown"), 1e-9)
}

func TestPromptVersionsOverride(t *testing.T) {
	cfg := Config{Prompts: PromptConfig{PRReview: "v3.0"}}

	versions := cfg.PromptVersions()
	assert.Equal(t, "v3.0", versions.PRReview)
	assert.Equal(t, "v1.3", versions.FailureAnalysis)
}

func TestAnalyticsCacheTTL(t *testing.T) {
	ttl, err := Config{Analytics: AnalyticsConfig{CacheTTL: "90s"}}.AnalyticsCacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, ttl)

	ttl, err = Config{}.AnalyticsCacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
}
