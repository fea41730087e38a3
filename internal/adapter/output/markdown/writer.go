// Package markdown renders completed reviews as human-readable Markdown
// reports, either to a writer or as named files on disk.
package markdown

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/scoring"
)

// Writer renders reviews into Markdown reports.
type Writer struct {
	caser cases.Caser
}

// NewWriter constructs a Markdown report writer.
func NewWriter() *Writer {
	return &Writer{caser: cases.Title(language.English)}
}

// WriteFile renders the review into dir, named after the review id and
// version, and returns the written path.
func (w *Writer) WriteFile(dir string, review domain.Review) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s_v%d.md", sanitise(review.ReviewID), review.Version)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, []byte(w.Render(review)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return path, nil
}

// Write renders the review to out.
func (w *Writer) Write(out io.Writer, review domain.Review) error {
	_, err := io.WriteString(out, w.Render(review))
	return err
}

// Render produces the full Markdown report for one review.
func (w *Writer) Render(review domain.Review) string {
	var b strings.Builder

	b.WriteString("# Infrastructure Review Report\n\n")
	b.WriteString(fmt.Sprintf("- Review: %s (version %d)\n", review.ReviewID, review.Version))
	b.WriteString(fmt.Sprintf("- Status: %s\n", review.Status))
	if review.RunID != "" {
		b.WriteString(fmt.Sprintf("- Run: %s\n", review.RunID))
	}
	if review.Context.Branch != "" {
		b.WriteString(fmt.Sprintf("- Branch: %s\n", review.Context.Branch))
	}
	b.WriteString(fmt.Sprintf("- Created: %s\n", review.CreatedAt.Format("2006-01-02 15:04:05 MST")))

	result := review.Result
	if result == nil {
		b.WriteString("\nNo analysis result available.\n")
		return b.String()
	}

	level := scoring.RiskLevel(result.OverallRiskScore)
	b.WriteString(fmt.Sprintf("- Risk: %.2f (%s)\n", result.OverallRiskScore, w.caser.String(string(level))))
	if result.Degraded() {
		b.WriteString("- Degraded: analysis produced without a model response\n")
	}
	b.WriteString("\n")

	w.writeSecurity(&b, result.SecurityAnalysis)
	w.writeCost(&b, result.CostAnalysis)
	w.writeReliability(&b, result.ReliabilityAnalysis)
	w.writeFixes(&b, result.FixSuggestions)

	return b.String()
}

func (w *Writer) writeSecurity(b *strings.Builder, sec domain.SecurityAnalysis) {
	b.WriteString("## Security\n\n")
	b.WriteString(fmt.Sprintf("%d finding(s): %d high, %d medium, %d low\n\n",
		sec.TotalFindings, sec.HighSeverity, sec.MediumSeverity, sec.LowSeverity))
	w.writeFindings(b, sec.Findings)
}

func (w *Writer) writeCost(b *strings.Builder, cost domain.CostAnalysis) {
	b.WriteString("## Cost\n\n")
	b.WriteString(fmt.Sprintf("- Estimated monthly cost: $%.2f\n", cost.EstimatedMonthlyCost))
	b.WriteString(fmt.Sprintf("- Estimated annual cost: $%.2f\n", cost.EstimatedAnnualCost))
	b.WriteString(fmt.Sprintf("- Resources analyzed: %d\n\n", cost.ResourceCount))
	w.writeFindings(b, cost.CostOptimizations)
}

func (w *Writer) writeReliability(b *strings.Builder, rel domain.ReliabilityAnalysis) {
	b.WriteString("## Reliability\n\n")
	b.WriteString(fmt.Sprintf("- Reliability score: %.2f\n\n", rel.ReliabilityScore))
	w.writeFindings(b, rel.SinglePointsOfFailure)
	if len(rel.Recommendations) > 0 {
		b.WriteString("Recommendations:\n\n")
		for _, rec := range rel.Recommendations {
			b.WriteString(fmt.Sprintf("- %s\n", rec))
		}
		b.WriteString("\n")
	}
}

func (w *Writer) writeFindings(b *strings.Builder, findings []domain.Finding) {
	if len(findings) == 0 {
		b.WriteString("No findings reported.\n\n")
		return
	}

	for _, f := range findings {
		b.WriteString(fmt.Sprintf("### %s (%s)\n", f.Title, w.caser.String(string(f.Severity))))
		if f.FilePath != nil {
			if f.LineNumber != nil {
				b.WriteString(fmt.Sprintf("- Location: %s:%d\n", *f.FilePath, *f.LineNumber))
			} else {
				b.WriteString(fmt.Sprintf("- Location: %s\n", *f.FilePath))
			}
		}
		b.WriteString(fmt.Sprintf("- Description: %s\n", f.Description))
		b.WriteString(fmt.Sprintf("- Recommendation: %s\n", f.Recommendation))
		if f.EstimatedCostImpact != nil {
			b.WriteString(fmt.Sprintf("- Estimated cost impact: $%.2f/month\n", *f.EstimatedCostImpact))
		}
		b.WriteString(fmt.Sprintf("- Confidence: %.2f\n\n", f.ConfidenceScore))
	}
}

func (w *Writer) writeFixes(b *strings.Builder, fixes []domain.FixSuggestion) {
	if len(fixes) == 0 {
		return
	}

	b.WriteString("## Suggested Fixes\n\n")
	for _, fix := range fixes {
		b.WriteString(fmt.Sprintf("### Fix for %s\n\n", fix.FindingID))
		b.WriteString(fix.Explanation)
		b.WriteString("\n\n```hcl\n")
		b.WriteString(strings.TrimRight(fix.SuggestedCode, "\n"))
		b.WriteString("\n```\n\n")
	}
}

func sanitise(value string) string {
	if value == "" {
		return "unknown"
	}
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, string(filepath.Separator), "-")
	value = strings.ReplaceAll(value, " ", "-")
	return value
}
