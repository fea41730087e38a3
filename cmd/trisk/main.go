package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/bkeller/terrarisk/internal/adapter/cli"
	"github.com/bkeller/terrarisk/internal/adapter/gitctx"
	"github.com/bkeller/terrarisk/internal/adapter/llm"
	"github.com/bkeller/terrarisk/internal/adapter/llm/anthropic"
	"github.com/bkeller/terrarisk/internal/adapter/llm/ollama"
	"github.com/bkeller/terrarisk/internal/adapter/llm/openai"
	"github.com/bkeller/terrarisk/internal/adapter/observability"
	"github.com/bkeller/terrarisk/internal/adapter/store/sqlite"
	"github.com/bkeller/terrarisk/internal/backend"
	"github.com/bkeller/terrarisk/internal/config"
	"github.com/bkeller/terrarisk/internal/prompt"
	"github.com/bkeller/terrarisk/internal/redaction"
	"github.com/bkeller/terrarisk/internal/store"
	"github.com/bkeller/terrarisk/internal/usecase/review"
)

var version = "v0.1.0"

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "trisk",
		EnvPrefix:   "TRISK",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger, err := buildLogger(cfg.Observability.Logging)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer logger.Sync()

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("backend registry: %w", err)
	}

	retryConfig, err := cfg.RetryConfig()
	if err != nil {
		return err
	}

	clients := buildClients(cfg)
	pipeline := review.NewPipeline(registry, clients, retryConfig, logger)
	builder := review.NewBuilder(cfg.ConfidenceTable())

	compiler, err := prompt.NewCompiler(cfg.PromptVersions())
	if err != nil {
		return fmt.Errorf("prompt compiler: %w", err)
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	reviews, err := sqlite.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer reviews.Close()

	ttl, err := cfg.AnalyticsCacheTTL()
	if err != nil {
		return err
	}
	analytics := store.NewCachedAnalytics(reviews, ttl)

	obs := observability.NewLogger(logger)
	orchestrator := review.NewOrchestrator(compiler, pipeline, builder, reviews, redaction.NewEngine(), obs, nil)

	root := cli.NewRootCommand(cli.Dependencies{
		Reviewer:    orchestrator,
		Reviews:     reviews,
		Analytics:   analytics,
		Enricher:    gitctx.NewEnricher("."),
		Args:        cli.Arguments{OutWriter: os.Stdout, ErrWriter: os.Stderr},
		Concurrency: cfg.Review.Concurrency,
		MaxAgeDays:  cfg.Analytics.MaxAgeDays,
		Version:     version,
	})

	return root.ExecuteContext(ctx)
}

// buildClients constructs one invocation client per backend kind.
func buildClients(cfg config.Config) llm.ClientSet {
	byKind := map[backend.Kind]llm.Client{
		backend.KindAnthropic: anthropic.NewClient(cfg.Anthropic.APIKey),
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		openaiClient.SetBaseURL(cfg.OpenAI.BaseURL)
	}
	byKind[backend.KindOpenAI] = openaiClient

	ollamaClient := ollama.NewClient()
	if cfg.Ollama.BaseURL != "" {
		ollamaClient.SetBaseURL(cfg.Ollama.BaseURL)
	}
	byKind[backend.KindOllama] = ollamaClient

	return llm.NewClientSet(byKind)
}

// buildLogger configures zap. Format "auto" picks console output on a TTY
// and JSON otherwise, so piped output stays machine-readable.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	format := cfg.Format
	if format == "" || format == "auto" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		} else {
			format = "json"
		}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = format
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	if format == "console" {
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zapCfg.Build()
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "trisk"))
	}
	return paths
}
