// Package backend describes the configured generative model backends.
// The registry is an ordered, immutable list built once at startup; nothing
// in the codebase consults a process-wide model table.
package backend

import (
	"fmt"
	"sort"
)

// Kind selects the invocation implementation for a backend. The enumeration
// is closed: each kind binds to exactly one client, and configuration naming
// any other kind is rejected at load time.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
	KindOllama    Kind = "ollama"
)

// ParseKind validates a configured kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAnthropic, KindOpenAI, KindOllama:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unsupported backend kind %q", s)
}

// Descriptor configures a single model backend.
type Descriptor struct {
	// ID is the provider-side model identifier sent on the wire.
	ID string
	// Name is the short model name used in metadata and confidence lookup.
	Name string
	// Kind picks the invocation client.
	Kind Kind
	// MaxTokens caps the response size; prompts estimated to exceed it are
	// rejected for this backend without a network call.
	MaxTokens int
	// Temperature is kept low for near-deterministic structured output.
	Temperature float64
	// Priority orders fallback; lower tries first.
	Priority int
}

// Registry is an immutable, priority-ordered backend list.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry validates the descriptors and returns a registry ordered by
// ascending priority. At least one backend is required.
func NewRegistry(descriptors ...Descriptor) (Registry, error) {
	if len(descriptors) == 0 {
		return Registry{}, fmt.Errorf("at least one backend is required")
	}

	ordered := make([]Descriptor, len(descriptors))
	copy(ordered, descriptors)

	seen := make(map[string]struct{}, len(ordered))
	for _, d := range ordered {
		if d.ID == "" {
			return Registry{}, fmt.Errorf("backend with empty model id")
		}
		if _, err := ParseKind(string(d.Kind)); err != nil {
			return Registry{}, fmt.Errorf("backend %s: %w", d.ID, err)
		}
		if d.MaxTokens <= 0 {
			return Registry{}, fmt.Errorf("backend %s: max tokens must be positive", d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return Registry{}, fmt.Errorf("duplicate backend id %s", d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	return Registry{descriptors: ordered}, nil
}

// DefaultRegistry returns the stock backend ordering: Claude 3.5 Sonnet as
// primary, Claude 3 Opus as the high-quality fallback, Llama 3 70B as the
// cost-effective last resort.
func DefaultRegistry() Registry {
	reg, err := NewRegistry(
		Descriptor{
			ID:          "claude-3-5-sonnet-20241022",
			Name:        "claude-3-5-sonnet",
			Kind:        KindAnthropic,
			MaxTokens:   4096,
			Temperature: 0.1,
			Priority:    0,
		},
		Descriptor{
			ID:          "claude-3-opus-20240229",
			Name:        "claude-3-opus",
			Kind:        KindAnthropic,
			MaxTokens:   4096,
			Temperature: 0.1,
			Priority:    1,
		},
		Descriptor{
			ID:          "llama3:70b",
			Name:        "llama3-70b",
			Kind:        KindOllama,
			MaxTokens:   2048,
			Temperature: 0.1,
			Priority:    2,
		},
	)
	if err != nil {
		panic(err) // static descriptors, cannot fail
	}
	return reg
}

// Descriptors returns a copy of the priority-ordered backend list.
func (r Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Len returns the number of configured backends.
func (r Registry) Len() int {
	return len(r.descriptors)
}
