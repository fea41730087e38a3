// Package ollama invokes locally hosted models through the Ollama API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bkeller/terrarisk/internal/adapter/llm"
	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
)

const (
	backendName    = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 120 * time.Second // local generation is slow
)

// Client is an HTTP client for an Ollama server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Ollama client against the default local address.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// SetBaseURL sets a custom base URL (for testing or remote hosts).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Invoke sends a non-streaming generate request.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	body := GenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: Options{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return llm.Response{}, ctx.Err()
		}
		return llm.Response{}, llmhttp.NewTimeoutError(backendName, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return llm.Response{}, c.handleErrorResponse(resp.StatusCode, raw)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return llm.Response{}, fmt.Errorf("parse response: %w", err)
	}

	return llm.Response{
		Text:      genResp.Response,
		Model:     genResp.Model,
		TokensIn:  genResp.PromptEvalCount,
		TokensOut: genResp.EvalCount,
	}, nil
}

// handleErrorResponse maps HTTP status codes to typed errors. Ollama reports
// an unknown model as a 404 with a descriptive error string.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}

	switch {
	case statusCode == http.StatusNotFound, strings.Contains(message, "not found"):
		return llmhttp.NewModelNotFoundError(backendName, message)
	case statusCode == http.StatusBadRequest:
		return llmhttp.NewInvalidRequestError(backendName, message)
	case statusCode == http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(backendName, message)
	case statusCode >= 500:
		return llmhttp.NewServiceUnavailableError(backendName, message)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Backend:    backendName,
		}
	}
}
