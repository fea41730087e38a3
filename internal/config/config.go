// Package config holds the application configuration and its translation
// into the immutable objects the engine components are constructed with.
package config

import (
	"fmt"
	"time"

	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
	"github.com/bkeller/terrarisk/internal/backend"
	"github.com/bkeller/terrarisk/internal/prompt"
	"github.com/bkeller/terrarisk/internal/scoring"
)

// Config represents the full application configuration.
type Config struct {
	Backends      []BackendConfig     `yaml:"backends"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	HTTP          HTTPConfig          `yaml:"http"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Prompts       PromptConfig        `yaml:"prompts"`
	Store         StoreConfig         `yaml:"store"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Review        ReviewConfig        `yaml:"review"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BackendConfig configures one model backend in the fallback chain.
type BackendConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	Kind        string  `yaml:"kind"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
	Priority    int     `yaml:"priority"`
	Enabled     bool    `yaml:"enabled"`
}

// AnthropicConfig holds Anthropic API credentials.
type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"`
}

// OpenAIConfig holds OpenAI API credentials and endpoint.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
}

// OllamaConfig holds the local Ollama endpoint.
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"`
}

// HTTPConfig holds the retry policy shared by all backends.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxAttempts       int     `yaml:"maxAttempts"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// ScoringConfig overrides the per-model base confidence table.
type ScoringConfig struct {
	ModelConfidence   map[string]float64 `yaml:"modelConfidence"`
	DefaultConfidence float64            `yaml:"defaultConfidence"`
}

// PromptConfig labels the prompt format versions.
type PromptConfig struct {
	PRReview         string `yaml:"prReview"`
	FailureAnalysis  string `yaml:"failureAnalysis"`
	FixEffectiveness string `yaml:"fixEffectiveness"`
}

// StoreConfig locates the review database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AnalyticsConfig tunes the analytics cache.
type AnalyticsConfig struct {
	CacheTTL   string `yaml:"cacheTTL"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// ReviewConfig tunes batch review behavior.
type ReviewConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Registry builds the immutable backend registry from the enabled backends.
func (c Config) Registry() (backend.Registry, error) {
	var descriptors []backend.Descriptor
	for _, b := range c.Backends {
		if !b.Enabled {
			continue
		}
		kind, err := backend.ParseKind(b.Kind)
		if err != nil {
			return backend.Registry{}, fmt.Errorf("backend %s: %w", b.Name, err)
		}
		descriptors = append(descriptors, backend.Descriptor{
			ID:          b.Model,
			Name:        b.Name,
			Kind:        kind,
			MaxTokens:   b.MaxTokens,
			Temperature: b.Temperature,
			Priority:    b.Priority,
		})
	}
	return backend.NewRegistry(descriptors...)
}

// RetryConfig translates the HTTP section into the pipeline retry policy.
func (c Config) RetryConfig() (llmhttp.RetryConfig, error) {
	retry := llmhttp.DefaultRetryConfig()

	if c.HTTP.MaxAttempts > 0 {
		retry.MaxAttempts = c.HTTP.MaxAttempts
	}
	if c.HTTP.BackoffMultiplier > 0 {
		retry.Multiplier = c.HTTP.BackoffMultiplier
	}
	if c.HTTP.InitialBackoff != "" {
		d, err := time.ParseDuration(c.HTTP.InitialBackoff)
		if err != nil {
			return llmhttp.RetryConfig{}, fmt.Errorf("http.initialBackoff: %w", err)
		}
		retry.InitialBackoff = d
	}
	if c.HTTP.MaxBackoff != "" {
		d, err := time.ParseDuration(c.HTTP.MaxBackoff)
		if err != nil {
			return llmhttp.RetryConfig{}, fmt.Errorf("http.maxBackoff: %w", err)
		}
		retry.MaxBackoff = d
	}
	return retry, nil
}

// ConfidenceTable builds the scoring confidence table, falling back to the
// stock one when no overrides are configured.
func (c Config) ConfidenceTable() scoring.ConfidenceTable {
	if len(c.Scoring.ModelConfidence) == 0 {
		return scoring.DefaultConfidenceTable()
	}
	fallback := c.Scoring.DefaultConfidence
	if fallback <= 0 {
		fallback = 0.80
	}
	return scoring.NewConfidenceTable(c.Scoring.ModelConfidence, fallback)
}

// PromptVersions translates the prompts section into version labels.
func (c Config) PromptVersions() prompt.Versions {
	versions := prompt.DefaultVersions()
	if c.Prompts.PRReview != "" {
		versions.PRReview = c.Prompts.PRReview
	}
	if c.Prompts.FailureAnalysis != "" {
		versions.FailureAnalysis = c.Prompts.FailureAnalysis
	}
	if c.Prompts.FixEffectiveness != "" {
		versions.FixEffectiveness = c.Prompts.FixEffectiveness
	}
	return versions
}

// AnalyticsCacheTTL parses the analytics cache TTL.
func (c Config) AnalyticsCacheTTL() (time.Duration, error) {
	if c.Analytics.CacheTTL == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.Analytics.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("analytics.cacheTTL: %w", err)
	}
	return d, nil
}
