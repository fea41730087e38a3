package scoring

import (
	"strings"

	"github.com/bkeller/terrarisk/internal/domain"
)

// ConfidenceTable maps model names to base confidence. It is an immutable
// value injected at construction time so tests can substitute fixtures.
type ConfidenceTable struct {
	byModel  map[string]float64
	fallback float64
}

// NewConfidenceTable copies the supplied model table. Model names are
// matched case-insensitively.
func NewConfidenceTable(byModel map[string]float64, fallback float64) ConfidenceTable {
	copied := make(map[string]float64, len(byModel))
	for name, base := range byModel {
		copied[strings.ToLower(name)] = base
	}
	return ConfidenceTable{byModel: copied, fallback: fallback}
}

// DefaultConfidenceTable returns the base confidence per known model.
func DefaultConfidenceTable() ConfidenceTable {
	return NewConfidenceTable(map[string]float64{
		"claude-3-5-sonnet": 0.95,
		"claude-3-opus":     0.98,
		"llama3-70b":        0.85,
	}, 0.80)
}

// Base returns the base confidence for a model name.
func (t ConfidenceTable) Base(model string) float64 {
	if base, ok := t.byModel[strings.ToLower(model)]; ok {
		return base
	}
	return t.fallback
}

// FindingConfidence computes the deterministic confidence for a finding.
// The model's self-reported confidence never feeds into this: the score is
// derived entirely from which model produced the finding and how specific
// the finding is (line number, file path), minus a penalty for lower
// severities.
func (t ConfidenceTable) FindingConfidence(f domain.Finding, model string) float64 {
	confidence := t.Base(model)

	if f.LineNumber != nil {
		confidence += 0.03
	}
	if f.FilePath != nil {
		confidence += 0.02
	}

	switch f.Severity {
	case domain.SeverityMedium:
		confidence -= 0.02
	case domain.SeverityLow:
		confidence -= 0.05
	}

	return clamp01(confidence)
}

// OverallConfidence averages finding confidences weighted by severity.
// Returns 0 when there are no findings.
func (t ConfidenceTable) OverallConfidence(findings []domain.Finding, model string) float64 {
	if len(findings) == 0 {
		return 0.0
	}

	var weightedSum, totalWeight float64
	for _, f := range findings {
		w := severityWeight(f.Severity)
		weightedSum += t.FindingConfidence(f, model) * w
		totalWeight += w
	}

	if totalWeight < 1 {
		totalWeight = 1
	}
	return weightedSum / totalWeight
}
