package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment
// variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "trisk"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "TRISK"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg = expandEnvVars(cfg)

	return cfg, nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in credential and path
// values so secrets can stay out of the config file.
func expandEnvVars(cfg Config) Config {
	cfg.Anthropic.APIKey = expandEnvString(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnvString(cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = expandEnvString(cfg.OpenAI.BaseURL)
	cfg.Ollama.BaseURL = expandEnvString(cfg.Ollama.BaseURL)
	cfg.Store.Path = expandEnvString(cfg.Store.Path)
	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)
	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	// Backend chain mirroring the stock registry.
	v.SetDefault("backends", []map[string]any{
		{
			"name": "claude-3-5-sonnet", "model": "claude-3-5-sonnet-20241022",
			"kind": "anthropic", "maxTokens": 4096, "temperature": 0.1,
			"priority": 0, "enabled": true,
		},
		{
			"name": "claude-3-opus", "model": "claude-3-opus-20240229",
			"kind": "anthropic", "maxTokens": 4096, "temperature": 0.1,
			"priority": 1, "enabled": true,
		},
		{
			"name": "llama3-70b", "model": "llama3:70b",
			"kind": "ollama", "maxTokens": 2048, "temperature": 0.1,
			"priority": 2, "enabled": true,
		},
	})

	v.SetDefault("anthropic.apiKey", "${ANTHROPIC_API_KEY}")
	v.SetDefault("openai.apiKey", "${OPENAI_API_KEY}")
	v.SetDefault("ollama.baseURL", "http://localhost:11434")

	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.maxAttempts", 3)
	v.SetDefault("http.initialBackoff", "1s")
	v.SetDefault("http.maxBackoff", "30s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	v.SetDefault("store.path", "terrarisk.db")

	v.SetDefault("analytics.cacheTTL", "5m")
	v.SetDefault("analytics.maxAgeDays", 30)

	v.SetDefault("review.concurrency", 4)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "auto")
}
