package review

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/scoring"
)

// Builder maps validated model payloads into typed aggregates and layers the
// deterministic scores on top of whatever the model self-reported.
type Builder struct {
	confidence scoring.ConfidenceTable
}

// NewBuilder returns a Builder using the given confidence table.
func NewBuilder(confidence scoring.ConfidenceTable) Builder {
	return Builder{confidence: confidence}
}

// BuildReview constructs an AIReviewResult from a validated pr_review
// payload. Per-finding confidence is always recomputed from the backend
// identity and finding specificity; the model's self-reported value is
// discarded. The overall risk score is recomputed when the model's number is
// absent or out of range.
func (b Builder) BuildReview(payload []byte, reviewID, model, promptVersion string, codeLength int, now time.Time) (domain.AIReviewResult, error) {
	var result domain.AIReviewResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.AIReviewResult{}, &ParseError{Reason: err.Error()}
	}

	result.ReviewID = reviewID
	b.rescoreFindings(result.SecurityAnalysis.Findings, domain.CategorySecurity, model)
	b.rescoreFindings(result.CostAnalysis.CostOptimizations, domain.CategoryCost, model)
	b.rescoreFindings(result.ReliabilityAnalysis.SinglePointsOfFailure, domain.CategoryReliability, model)

	if result.OverallRiskScore < 0 || result.OverallRiskScore > 1 {
		result.OverallRiskScore = scoring.OverallRisk(
			result.SecurityAnalysis, result.CostAnalysis, result.ReliabilityAnalysis)
	}

	if result.ReviewMetadata == nil {
		result.ReviewMetadata = make(map[string]any)
	}
	result.ReviewMetadata["model_used"] = model
	result.ReviewMetadata["review_timestamp"] = now.UTC().Format(time.RFC3339)
	result.ReviewMetadata["prompt_version"] = promptVersion
	result.ReviewMetadata["code_length"] = codeLength

	return result, nil
}

// rescoreFindings overwrites confidence scores in place and backfills the
// category when the model omitted it.
func (b Builder) rescoreFindings(findings []domain.Finding, category domain.Category, model string) {
	for i := range findings {
		if findings[i].Category == "" {
			findings[i].Category = category
		}
		findings[i].ConfidenceScore = b.confidence.FindingConfidence(findings[i], model)
	}
}

// BuildFailureAnalysis constructs a FailureAnalysis from a validated
// failure_analysis payload.
func (b Builder) BuildFailureAnalysis(payload []byte, model, promptVersion string, now time.Time) (domain.FailureAnalysis, error) {
	var analysis domain.FailureAnalysis
	if err := json.Unmarshal(payload, &analysis); err != nil {
		return domain.FailureAnalysis{}, &ParseError{Reason: err.Error()}
	}

	if analysis.AnalysisMetadata == nil {
		analysis.AnalysisMetadata = make(map[string]any)
	}
	analysis.AnalysisMetadata["model_used"] = model
	analysis.AnalysisMetadata["analysis_timestamp"] = now.UTC().Format(time.RFC3339)
	analysis.AnalysisMetadata["prompt_version"] = promptVersion

	return analysis, nil
}

// BuildFixEffectiveness constructs a FixEffectiveness from a validated
// fix_effectiveness payload.
func (b Builder) BuildFixEffectiveness(payload []byte, model, promptVersion string, now time.Time) (domain.FixEffectiveness, error) {
	var effectiveness domain.FixEffectiveness
	if err := json.Unmarshal(payload, &effectiveness); err != nil {
		return domain.FixEffectiveness{}, &ParseError{Reason: err.Error()}
	}

	if effectiveness.AnalysisMetadata == nil {
		effectiveness.AnalysisMetadata = make(map[string]any)
	}
	effectiveness.AnalysisMetadata["model_used"] = model
	effectiveness.AnalysisMetadata["analysis_timestamp"] = now.UTC().Format(time.RFC3339)
	effectiveness.AnalysisMetadata["prompt_version"] = promptVersion

	return effectiveness, nil
}

const fallbackRecommendation = "Unable to complete analysis - AI service unavailable"

// fallbackRiskScore is the fixed score a degraded review carries; callers
// must check the degraded marker before trusting it.
const fallbackRiskScore = 0.5

// FallbackReview returns the fixed, well-formed aggregate substituted when
// every backend fails. It is always returned, never an error, so the review
// pipeline's contract stays total.
func (b Builder) FallbackReview(reviewID string, codeLength int, reason string, now time.Time) domain.AIReviewResult {
	return domain.AIReviewResult{
		ReviewID: reviewID,
		SecurityAnalysis: domain.SecurityAnalysis{
			Findings: []domain.Finding{},
		},
		CostAnalysis: domain.CostAnalysis{
			CostOptimizations: []domain.Finding{},
		},
		ReliabilityAnalysis: domain.ReliabilityAnalysis{
			ReliabilityScore:      0.5,
			SinglePointsOfFailure: []domain.Finding{},
			Recommendations:       []string{fallbackRecommendation},
		},
		OverallRiskScore: fallbackRiskScore,
		FixSuggestions:   []domain.FixSuggestion{},
		ReviewMetadata: map[string]any{
			"model_used":       "none",
			"review_timestamp": now.UTC().Format(time.RFC3339),
			"code_length":      codeLength,
			"degraded":         true,
			"fallback_reason":  reason,
		},
	}
}

// FallbackFailureAnalysis returns a degraded failure analysis with zero
// confidence.
func (b Builder) FallbackFailureAnalysis(reason string, now time.Time) domain.FailureAnalysis {
	return domain.FailureAnalysis{
		RootCause:            "Analysis unavailable",
		ContributingFactors:  []string{},
		Severity:             "unknown",
		Recommendations:      []domain.FailureRecommendation{},
		RelatedFindings:      []domain.RelatedFinding{},
		PreventionStrategies: []string{},
		ConfidenceScore:      0,
		AnalysisMetadata: map[string]any{
			"model_used":         "none",
			"analysis_timestamp": now.UTC().Format(time.RFC3339),
			"degraded":           true,
			"fallback_reason":    reason,
		},
	}
}

// FallbackFixEffectiveness returns a degraded fix assessment with zero
// confidence.
func (b Builder) FallbackFixEffectiveness(reason string, now time.Time) domain.FixEffectiveness {
	return domain.FixEffectiveness{
		FixAnalysis:     []domain.FixAssessment{},
		RemainingIssues: []domain.RemainingIssue{},
		Recommendations: []string{fallbackRecommendation},
		ConfidenceScore: 0,
		AnalysisMetadata: map[string]any{
			"model_used":         "none",
			"analysis_timestamp": now.UTC().Format(time.RFC3339),
			"degraded":           true,
			"fallback_reason":    reason,
		},
	}
}

// riskLevelString formats a risk bucket for logs.
func riskLevelString(score float64) string {
	return fmt.Sprintf("%s (%.2f)", scoring.RiskLevel(score), score)
}
