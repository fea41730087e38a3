// Package review orchestrates the end-to-end review lifecycle: prompt
// compilation, backend invocation with fallback, response validation,
// deterministic scoring, and versioned persistence.
package review

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bkeller/terrarisk/internal/prompt"
)

// ParseError means no valid JSON object could be extracted from the raw
// model text. The pipeline treats it as a backend failure and advances to
// the next backend.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %s", e.Reason)
}

// SchemaError means the extracted JSON is missing a required key or holds an
// out-of-range value for the task's schema. Treated the same as a parse
// failure: the backend is abandoned and the next one is tried.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation: field %q: %s", e.Field, e.Reason)
}

var (
	// Greedy match strips a markdown fence when the model wraps its JSON in
	// one; greedy so fenced code examples inside the JSON stay intact.
	jsonFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*)```")

	// Largest brace-delimited substring; models often surround the object
	// with prose.
	jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON locates the JSON object embedded in raw model text. It first
// strips a markdown code fence if present, then takes the largest
// brace-delimited substring.
func ExtractJSON(text string) (string, error) {
	candidate := strings.TrimSpace(text)
	if matches := jsonFenceRegex.FindStringSubmatch(candidate); len(matches) > 1 {
		candidate = strings.TrimSpace(matches[1])
	}

	object := jsonObjectRegex.FindString(candidate)
	if object == "" {
		return "", &ParseError{Reason: "no JSON object found in response"}
	}
	return object, nil
}

// Validator checks raw model responses against the required schema for each
// task type.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() Validator {
	return Validator{}
}

// Validate extracts the JSON object from raw model text and verifies the
// required keys and value constraints for the task. On success it returns
// the extracted JSON, ready to unmarshal into the typed aggregates.
func (v Validator) Validate(text string, task prompt.TaskType) ([]byte, error) {
	object, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	switch task {
	case prompt.TaskPRReview:
		err = validatePRReview(payload)
	case prompt.TaskFailureAnalysis:
		err = validateFailureAnalysis(payload)
	case prompt.TaskFixEffectiveness:
		err = validateFixEffectiveness(payload)
	default:
		return nil, fmt.Errorf("unknown task type %q", task)
	}
	if err != nil {
		return nil, err
	}

	return []byte(object), nil
}

func validatePRReview(payload map[string]any) error {
	required := []string{
		"security_analysis",
		"cost_analysis",
		"reliability_analysis",
		"overall_risk_score",
		"fix_suggestions",
		"review_metadata",
	}
	if err := requireKeys(payload, required); err != nil {
		return err
	}

	if err := requireList(payload, "security_analysis", "findings"); err != nil {
		return err
	}
	if err := requireList(payload, "cost_analysis", "cost_optimizations"); err != nil {
		return err
	}
	if err := requireUnitRange(payload, "overall_risk_score"); err != nil {
		return err
	}

	reliability, ok := payload["reliability_analysis"].(map[string]any)
	if !ok {
		return &SchemaError{Field: "reliability_analysis", Reason: "must be an object"}
	}
	return requireUnitRange(reliability, "reliability_score")
}

func validateFailureAnalysis(payload map[string]any) error {
	if err := requireKeys(payload, []string{"root_cause", "recommendations", "confidence_score"}); err != nil {
		return err
	}
	return requireUnitRange(payload, "confidence_score")
}

func validateFixEffectiveness(payload map[string]any) error {
	return requireKeys(payload, []string{"fix_effectiveness_score", "findings_resolved", "risk_reduction"})
}

func requireKeys(payload map[string]any, keys []string) error {
	for _, key := range keys {
		if _, ok := payload[key]; !ok {
			return &SchemaError{Field: key, Reason: "required key missing"}
		}
	}
	return nil
}

func requireList(payload map[string]any, section, key string) error {
	obj, ok := payload[section].(map[string]any)
	if !ok {
		return &SchemaError{Field: section, Reason: "must be an object"}
	}
	if _, ok := obj[key].([]any); !ok {
		return &SchemaError{Field: section + "." + key, Reason: "must be a list"}
	}
	return nil
}

func requireUnitRange(payload map[string]any, key string) error {
	value, ok := payload[key].(float64)
	if !ok {
		return &SchemaError{Field: key, Reason: "must be numeric"}
	}
	if value < 0 || value > 1 {
		return &SchemaError{Field: key, Reason: fmt.Sprintf("value %v outside [0,1]", value)}
	}
	return nil
}
