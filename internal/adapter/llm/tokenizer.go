package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	defaultEncoder *tiktoken.Tiktoken
	encoderOnce    sync.Once
	encoderErr     error
)

// getEncoder returns the shared tiktoken encoder, initializing it lazily.
// Uses cl100k_base encoding, which is a reasonable approximation for the
// Claude and Llama tokenizers as well.
func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		defaultEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return defaultEncoder, encoderErr
}

// EstimateTokens returns an estimated token count for the given text using
// the cl100k_base encoding. The pipeline uses it to reject prompts that
// cannot fit a backend's token limit before making a network call.
//
// Falls back to a character-based estimate (~4 chars per token) if the
// encoder cannot be initialized.
func EstimateTokens(text string) int {
	encoder, err := getEncoder()
	if err != nil {
		return len(text) / 4
	}
	return len(encoder.Encode(text, nil, nil))
}
