// Package llm defines the invocation contract shared by all model backend
// clients.
package llm

import "context"

// Request is a single model invocation.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the standardized raw response from any backend client.
// Parsing and validation of the embedded JSON happens downstream; clients
// only move text.
type Response struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// Client invokes one backend kind. Implementations must return typed
// *llmhttp.Error values so the pipeline can classify failures as transient
// or permanent.
type Client interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}
