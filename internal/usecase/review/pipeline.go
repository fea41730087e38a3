package review

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bkeller/terrarisk/internal/adapter/llm"
	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
	"github.com/bkeller/terrarisk/internal/backend"
	"github.com/bkeller/terrarisk/internal/prompt"
)

// ErrBackendsExhausted signals that every configured backend failed to
// produce a valid response. The orchestrator converts it into the fallback
// aggregate; it never reaches external callers.
var ErrBackendsExhausted = errors.New("all backends exhausted")

// Pipeline tries backends in priority order. Each backend gets retried with
// exponential backoff on transient failures; parse and schema failures
// abandon the backend and advance to the next. The first valid response
// wins.
type Pipeline struct {
	registry  backend.Registry
	clients   llm.ClientSet
	validator Validator
	retry     llmhttp.RetryConfig
	logger    *zap.Logger
}

// NewPipeline constructs a Pipeline over the given registry and client set.
func NewPipeline(registry backend.Registry, clients llm.ClientSet, retry llmhttp.RetryConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		registry:  registry,
		clients:   clients,
		validator: NewValidator(),
		retry:     retry,
		logger:    logger,
	}
}

// Invocation is a successful pipeline result: the validated JSON payload and
// the backend that produced it.
type Invocation struct {
	Payload   []byte
	Backend   backend.Descriptor
	TokensIn  int
	TokensOut int
}

// Invoke runs the compiled prompt through the backend chain and returns the
// first response that passes schema validation. A context error aborts
// immediately; any other total failure returns ErrBackendsExhausted.
func (p *Pipeline) Invoke(ctx context.Context, task prompt.TaskType, system, promptText string) (Invocation, error) {
	promptTokens := llm.EstimateTokens(promptText)

	for _, desc := range p.registry.Descriptors() {
		if err := ctx.Err(); err != nil {
			return Invocation{}, err
		}

		log := p.logger.With(zap.String("backend", desc.Name), zap.String("task", string(task)))

		if promptTokens > desc.MaxTokens {
			log.Warn("prompt exceeds backend token limit, skipping",
				zap.Int("prompt_tokens", promptTokens),
				zap.Int("max_tokens", desc.MaxTokens))
			continue
		}

		client, ok := p.clients.For(desc.Kind)
		if !ok {
			log.Warn("no client configured for backend kind", zap.String("kind", string(desc.Kind)))
			continue
		}

		var resp llm.Response
		err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var invokeErr error
			resp, invokeErr = client.Invoke(ctx, llm.Request{
				Model:       desc.ID,
				System:      system,
				Prompt:      promptText,
				MaxTokens:   desc.MaxTokens,
				Temperature: desc.Temperature,
			})
			return invokeErr
		}, p.retry)
		if err != nil {
			if ctx.Err() != nil {
				return Invocation{}, ctx.Err()
			}
			log.Warn("backend failed", zap.Error(err))
			continue
		}

		payload, err := p.validator.Validate(resp.Text, task)
		if err != nil {
			// Invalid output counts as a backend failure; try the next one.
			log.Warn("backend returned invalid response", zap.Error(err))
			continue
		}

		log.Info("backend succeeded",
			zap.Int("tokens_in", resp.TokensIn),
			zap.Int("tokens_out", resp.TokensOut))
		return Invocation{
			Payload:   payload,
			Backend:   desc,
			TokensIn:  resp.TokensIn,
			TokensOut: resp.TokensOut,
		}, nil
	}

	return Invocation{}, fmt.Errorf("%w: %d backends tried", ErrBackendsExhausted, p.registry.Len())
}
