// Package scoring implements the deterministic risk and confidence scoring
// layered on top of model output. All functions are pure: identical inputs
// always produce identical scores, which is what lets reviews be audited
// after the fact regardless of what the model self-reported.
package scoring

import (
	"github.com/bkeller/terrarisk/internal/domain"
)

// Severity weights applied when normalizing finding counts.
const (
	weightHigh   = 1.0
	weightMedium = 0.5
	weightLow    = 0.2
)

// Category weights for combining the three analyses. Security dominates.
const (
	categoryWeightSecurity    = 0.50
	categoryWeightCost        = 0.25
	categoryWeightReliability = 0.25
)

// Risk bucket thresholds.
const (
	riskHighThreshold   = 0.70
	riskMediumThreshold = 0.40
)

// OverallRisk combines the three category scores into a single value in
// [0,1]. This is the authoritative risk score; a model-reported value is
// only accepted by the result builder when it is already in range, and even
// then a missing or out-of-range value is replaced by this computation.
func OverallRisk(sec domain.SecurityAnalysis, cost domain.CostAnalysis, rel domain.ReliabilityAnalysis) float64 {
	overall := SecurityScore(sec)*categoryWeightSecurity +
		CostScore(cost)*categoryWeightCost +
		ReliabilityScore(rel)*categoryWeightReliability

	return clamp01(overall)
}

// SecurityScore normalizes weighted severity counts, with a 1.5x multiplier
// whenever any high-severity finding is present. Ten weighted findings
// saturate the score.
func SecurityScore(sec domain.SecurityAnalysis) float64 {
	if sec.TotalFindings == 0 {
		return 0.0
	}

	weighted := float64(sec.HighSeverity)*weightHigh +
		float64(sec.MediumSeverity)*weightMedium +
		float64(sec.LowSeverity)*weightLow

	normalized := min01(weighted / 10.0)

	if sec.HighSeverity > 0 {
		normalized = min01(normalized * 1.5)
	}

	return normalized
}

// CostScore treats $10k/month as full cost risk and adds up to 0.5 for
// outstanding optimization opportunities.
func CostScore(cost domain.CostAnalysis) float64 {
	base := min01(cost.EstimatedMonthlyCost / 10000.0)
	optimizations := float64(len(cost.CostOptimizations)) * 0.1
	if optimizations > 0.5 {
		optimizations = 0.5
	}
	return clamp01(base + optimizations)
}

// ReliabilityScore inverts the model's self-reported reliability and adds up
// to 0.3 for identified single points of failure.
func ReliabilityScore(rel domain.ReliabilityAnalysis) float64 {
	base := 1.0 - rel.ReliabilityScore
	spof := float64(len(rel.SinglePointsOfFailure)) * 0.1
	if spof > 0.3 {
		spof = 0.3
	}
	return clamp01(base + spof)
}

// RiskLevel buckets an overall risk score.
func RiskLevel(score float64) domain.RiskLevel {
	switch {
	case score >= riskHighThreshold:
		return domain.RiskHigh
	case score >= riskMediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// FindingRisk scores a single finding as severity weight scaled by its
// confidence. Unknown severities fall back to the medium weight.
func FindingRisk(f domain.Finding) float64 {
	return severityWeight(f.Severity) * f.ConfidenceScore
}

func severityWeight(s domain.Severity) float64 {
	switch s {
	case domain.SeverityHigh:
		return weightHigh
	case domain.SeverityMedium:
		return weightMedium
	case domain.SeverityLow:
		return weightLow
	default:
		return weightMedium
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min01(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
