// Package openai invokes OpenAI-compatible chat completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bkeller/terrarisk/internal/adapter/llm"
	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
)

const (
	backendName    = "openai"
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second
)

// Client is an HTTP client for the chat completions API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a new OpenAI HTTP client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// Invoke sends a chat completion request and returns the first choice.
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	body := ChatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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

	var chatResp ChatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return llm.Response{}, fmt.Errorf("parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return llm.Response{}, llmhttp.NewInvalidRequestError(backendName, "no choices in response")
	}

	return llm.Response{
		Text:      chatResp.Choices[0].Message.Content,
		Model:     chatResp.Model,
		TokensIn:  chatResp.Usage.PromptTokens,
		TokensOut: chatResp.Usage.CompletionTokens,
	}, nil
}

// handleErrorResponse maps HTTP status codes to typed errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(backendName, message)
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(backendName, message)
	case http.StatusBadRequest:
		return llmhttp.NewInvalidRequestError(backendName, message)
	case http.StatusNotFound:
		return llmhttp.NewModelNotFoundError(backendName, message)
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
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
