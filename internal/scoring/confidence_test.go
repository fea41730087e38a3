package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/scoring"
)

func TestConfidenceTableBase(t *testing.T) {
	table := scoring.DefaultConfidenceTable()

	assert.Equal(t, 0.95, table.Base("claude-3-5-sonnet"))
	assert.Equal(t, 0.98, table.Base("claude-3-opus"))
	assert.Equal(t, 0.85, table.Base("llama3-70b"))
	assert.Equal(t, 0.80, table.Base("gpt-4o"))
	assert.Equal(t, 0.95, table.Base("Claude-3-5-Sonnet"), "model match is case-insensitive")
}

func TestFindingConfidence(t *testing.T) {
	table := scoring.DefaultConfidenceTable()
	line := 12
	path := "main.tf"

	tests := []struct {
		name    string
		finding domain.Finding
		model   string
		want    float64
	}{
		{
			name:    "high severity with full specificity",
			finding: domain.Finding{Severity: domain.SeverityHigh, LineNumber: &line, FilePath: &path},
			model:   "claude-3-5-sonnet",
			want:    1.0, // 0.95 + 0.03 + 0.02, clamped
		},
		{
			name:    "medium severity no specificity",
			finding: domain.Finding{Severity: domain.SeverityMedium},
			model:   "llama3-70b",
			want:    0.83, // 0.85 - 0.02
		},
		{
			name:    "low severity with line only",
			finding: domain.Finding{Severity: domain.SeverityLow, LineNumber: &line},
			model:   "unknown-model",
			want:    0.78, // 0.80 + 0.03 - 0.05
		},
		{
			name:    "file path only",
			finding: domain.Finding{Severity: domain.SeverityHigh, FilePath: &path},
			model:   "claude-3-opus",
			want:    1.0, // 0.98 + 0.02
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.FindingConfidence(tt.finding, tt.model)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestFindingConfidenceIgnoresModelReportedValue(t *testing.T) {
	table := scoring.DefaultConfidenceTable()

	a := domain.Finding{Severity: domain.SeverityHigh, ConfidenceScore: 0.1}
	b := domain.Finding{Severity: domain.SeverityHigh, ConfidenceScore: 0.99}

	assert.Equal(t, table.FindingConfidence(a, "llama3-70b"), table.FindingConfidence(b, "llama3-70b"))
}

func TestOverallConfidence(t *testing.T) {
	table := scoring.NewConfidenceTable(map[string]float64{"fixture": 0.9}, 0.5)

	assert.Equal(t, 0.0, table.OverallConfidence(nil, "fixture"))

	findings := []domain.Finding{
		{Severity: domain.SeverityHigh},   // 0.90, weight 1.0
		{Severity: domain.SeverityMedium}, // 0.88, weight 0.5
	}
	// (0.90*1.0 + 0.88*0.5) / 1.5
	assert.InDelta(t, 0.8933333333, table.OverallConfidence(findings, "fixture"), 1e-9)
}
