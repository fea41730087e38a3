// Package redaction strips credentials from infrastructure source before it
// is sent to an external model backend.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine performs regex-based secret detection and redaction. Placeholders
// are derived from the secret's hash, so the same secret always maps to the
// same placeholder and redacted prompts stay deterministic.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates an engine with the default infrastructure-code secret
// patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Redact replaces detected secrets with stable placeholders and reports how
// many distinct secrets were found.
func (e *Engine) Redact(input string) (string, int) {
	placeholders := make(map[string]string)

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(input, -1) {
			if _, seen := placeholders[match]; seen {
				continue
			}
			placeholders[match] = placeholder(match)
		}
	}

	result := input
	for secret, repl := range placeholders {
		result = strings.ReplaceAll(result, secret, repl)
	}
	return result, len(placeholders)
}

// IsRedacted reports whether content carries redaction placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

func placeholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:])[:8])
}

// defaultPatterns covers the credential shapes that commonly leak into
// infrastructure code: cloud keys, inline secret assignments, connection
// strings, and PEM material.
func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// AWS access key id
		`AKIA[0-9A-Z]{16}`,
		// AWS secret access key assigned in HCL or env style
		`(?i)(?:secret_access_key|aws_secret)\s*[=:]\s*"?[0-9a-zA-Z/+]{40}"?`,
		// Inline password/secret/token assignments
		`(?i)(?:password|secret|token|api_key)\s*=\s*"[^"\s]{8,}"`,
		// Connection strings with embedded credentials
		`[a-z][a-z0-9+]*://[^/\s:@]+:[^@\s]+@[^\s"']+`,
		// Anthropic / OpenAI API keys
		`sk-ant-[a-zA-Z0-9\-]{20,}`,
		`sk-[a-zA-Z0-9]{20,}`,
		// GitHub tokens
		`gh[posr]_[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// JWT tokens
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// PEM private keys
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)?\s*PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)?\s*PRIVATE\s+KEY-----`,
		// Bearer tokens
		`Bearer\s+[a-zA-Z0-9_\-\.]{16,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
