package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious a finding is. The set is closed; scoring
// weights are keyed on these exact values.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is one of the recognized severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Category classifies which analysis a finding belongs to.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryCost        Category = "cost"
	CategoryReliability Category = "reliability"
)

// ReviewStatus is the lifecycle state of a review. Transitions are
// pending -> in_progress -> completed | failed, each materialized as a new
// stored version rather than an in-place update.
type ReviewStatus string

const (
	StatusPending    ReviewStatus = "pending"
	StatusInProgress ReviewStatus = "in_progress"
	StatusCompleted  ReviewStatus = "completed"
	StatusFailed     ReviewStatus = "failed"
)

// Valid reports whether st is one of the recognized statuses.
func (st ReviewStatus) Valid() bool {
	switch st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// RiskLevel buckets an overall risk score for display and alerting.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Finding is a single categorized issue detected in the reviewed source.
// Field names are the wire contract shared with the model prompt schema.
type Finding struct {
	FindingID           string   `json:"finding_id"`
	Category            Category `json:"category"`
	Severity            Severity `json:"severity"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	LineNumber          *int     `json:"line_number,omitempty"`
	FilePath            *string  `json:"file_path,omitempty"`
	Recommendation      string   `json:"recommendation"`
	EstimatedCostImpact *float64 `json:"estimated_cost_impact,omitempty"`
	ConfidenceScore     float64  `json:"confidence_score"`
}

// FixSuggestion proposes a code change addressing a specific finding.
type FixSuggestion struct {
	FixID              string   `json:"fix_id"`
	FindingID          string   `json:"finding_id"`
	OriginalCode       string   `json:"original_code"`
	SuggestedCode      string   `json:"suggested_code"`
	Explanation        string   `json:"explanation"`
	EffectivenessScore *float64 `json:"effectiveness_score,omitempty"`
}

// SecurityAnalysis aggregates security findings with severity counts.
type SecurityAnalysis struct {
	TotalFindings  int       `json:"total_findings"`
	HighSeverity   int       `json:"high_severity"`
	MediumSeverity int       `json:"medium_severity"`
	LowSeverity    int       `json:"low_severity"`
	Findings       []Finding `json:"findings"`
}

// CostAnalysis aggregates cost findings and estimated spend.
type CostAnalysis struct {
	EstimatedMonthlyCost float64   `json:"estimated_monthly_cost"`
	EstimatedAnnualCost  float64   `json:"estimated_annual_cost"`
	ResourceCount        int       `json:"resource_count"`
	CostOptimizations    []Finding `json:"cost_optimizations"`
}

// ReliabilityAnalysis aggregates reliability findings. ReliabilityScore is
// the model's self-assessment in [0,1]; higher means more reliable.
type ReliabilityAnalysis struct {
	ReliabilityScore      float64   `json:"reliability_score"`
	SinglePointsOfFailure []Finding `json:"single_points_of_failure"`
	Recommendations       []string  `json:"recommendations"`
}

// AIReviewResult is the full structured assessment produced for one review.
// OverallRiskScore is always the deterministic computed value, never a raw
// model-reported number.
type AIReviewResult struct {
	ReviewID            string              `json:"review_id"`
	SecurityAnalysis    SecurityAnalysis    `json:"security_analysis"`
	CostAnalysis        CostAnalysis        `json:"cost_analysis"`
	ReliabilityAnalysis ReliabilityAnalysis `json:"reliability_analysis"`
	OverallRiskScore    float64             `json:"overall_risk_score"`
	FixSuggestions      []FixSuggestion     `json:"fix_suggestions"`
	ReviewMetadata      map[string]any      `json:"review_metadata"`
}

// Degraded reports whether this result is a fallback aggregate produced
// because no backend returned a valid response.
func (r AIReviewResult) Degraded() bool {
	v, ok := r.ReviewMetadata["degraded"].(bool)
	return ok && v
}

// Review is the root entity. A review is created once at version 1 and only
// ever superseded by new versions; it is never mutated in place.
type Review struct {
	ReviewID          string          `json:"review_id"`
	SourceCode        string          `json:"source_code"`
	RunID             string          `json:"run_id,omitempty"`
	Context           RunContext      `json:"context"`
	Status            ReviewStatus    `json:"status"`
	Result            *AIReviewResult `json:"ai_review_result,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
	PreviousVersionID string          `json:"previous_version_id,omitempty"`
}

// NewReview constructs a pending version-1 review for the given source.
func NewReview(sourceCode, runID string, rc RunContext, now time.Time) Review {
	return Review{
		ReviewID:   uuid.NewString(),
		SourceCode: sourceCode,
		RunID:      runID,
		Context:    rc,
		Status:     StatusPending,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
		Version:    1,
	}
}

// VersionID names a specific stored version of a review, used for
// previous-version chain references.
func (r Review) VersionID() string {
	return versionID(r.ReviewID, r.Version)
}
