// Package anthropic invokes Claude models through the official Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bkeller/terrarisk/internal/adapter/llm"
	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
)

const backendName = "anthropic"

// Client wraps the Anthropic Messages API.
type Client struct {
	api *anthropicsdk.Client
}

// NewClient creates an Anthropic client. Additional request options (such as
// option.WithBaseURL for tests) are passed through to the SDK.
func NewClient(apiKey string, opts ...option.RequestOption) *Client {
	// Retry policy lives in the invocation pipeline; disable the SDK's own.
	all := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	client := anthropicsdk.NewClient(all...)
	return &Client{api: &client}
}

// Invoke sends a single message and returns the concatenated text blocks.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, classifyError(ctx, err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return llm.Response{}, llmhttp.NewInvalidRequestError(backendName, "no text content in response")
	}

	return llm.Response{
		Text:      strings.Join(parts, ""),
		Model:     string(msg.Model),
		TokensIn:  int(msg.Usage.InputTokens),
		TokensOut: int(msg.Usage.OutputTokens),
	}, nil
}

// classifyError maps SDK errors onto the shared taxonomy so the pipeline can
// tell transient failures from permanent ones.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apierr *anthropicsdk.Error
	if !errors.As(err, &apierr) {
		// Transport-level failure; worth retrying on the same backend.
		return llmhttp.NewTimeoutError(backendName, err.Error())
	}

	switch apierr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(backendName, apierr.Error())
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(backendName, apierr.Error())
	case http.StatusBadRequest:
		return llmhttp.NewInvalidRequestError(backendName, apierr.Error())
	case http.StatusNotFound:
		return llmhttp.NewModelNotFoundError(backendName, apierr.Error())
	case 529: // Anthropic-specific: overloaded
		return llmhttp.NewServiceUnavailableError(backendName, apierr.Error())
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return llmhttp.NewServiceUnavailableError(backendName, apierr.Error())
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    apierr.Error(),
			StatusCode: apierr.StatusCode,
			Retryable:  false,
			Backend:    backendName,
		}
	}
}
