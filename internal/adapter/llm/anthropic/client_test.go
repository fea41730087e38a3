package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkeller/terrarisk/internal/adapter/llm"
	"github.com/bkeller/terrarisk/internal/adapter/llm/anthropic"
	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
)

func newTestClient(serverURL string) *anthropic.Client {
	return anthropic.NewClient("test-key", option.WithBaseURL(serverURL))
}

func TestInvokeSuccess(t *testing.T) {
	var captured map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "{\"findings\": []}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 350, "output_tokens": 42}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	resp, err := client.Invoke(context.Background(), llm.Request{
		Model:       "claude-3-5-sonnet-20241022",
		System:      "respond with JSON",
		Prompt:      "review this",
		MaxTokens:   4096,
		Temperature: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"findings": []}`, resp.Text)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Model)
	assert.Equal(t, 350, resp.TokensIn)
	assert.Equal(t, 42, resp.TokensOut)

	assert.Equal(t, "claude-3-5-sonnet-20241022", captured["model"])
	assert.EqualValues(t, 4096, captured["max_tokens"])
	assert.InDelta(t, 0.1, captured["temperature"].(float64), 1e-9)
}

func TestInvokeConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_02",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Invoke(context.Background(), llm.Request{
		Model: "claude-3-5-sonnet-20241022", Prompt: "x", MaxTokens: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Text)
}

func TestInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantType  llmhttp.ErrorType
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, llmhttp.ErrTypeAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, llmhttp.ErrTypeRateLimit, true},
		{"bad request", http.StatusBadRequest, llmhttp.ErrTypeInvalidRequest, false},
		{"not found", http.StatusNotFound, llmhttp.ErrTypeModelNotFound, false},
		{"overloaded", 529, llmhttp.ErrTypeServiceUnavailable, true},
		{"server error", http.StatusInternalServerError, llmhttp.ErrTypeServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "api_error", "message": "nope"}}`))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Invoke(context.Background(), llm.Request{
				Model: "claude-3-5-sonnet-20241022", Prompt: "x", MaxTokens: 16,
			})

			var backendErr *llmhttp.Error
			require.ErrorAs(t, err, &backendErr)
			assert.Equal(t, tt.wantType, backendErr.Type)
			assert.Equal(t, tt.retryable, backendErr.IsRetryable())
		})
	}
}

func TestInvokeContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).Invoke(ctx, llm.Request{
		Model: "claude-3-5-sonnet-20241022", Prompt: "x", MaxTokens: 16,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
