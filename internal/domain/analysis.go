package domain

// FailureRecommendation is a single prioritized action from a failure
// analysis.
type FailureRecommendation struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Explanation string `json:"explanation"`
}

// RelatedFinding links a failure back to a previously reported finding.
type RelatedFinding struct {
	FindingID   string `json:"finding_id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FailureAnalysis is the typed result of the failure_analysis task.
type FailureAnalysis struct {
	RootCause            string                  `json:"root_cause"`
	ContributingFactors  []string                `json:"contributing_factors"`
	Severity             string                  `json:"severity"`
	Recommendations      []FailureRecommendation `json:"recommendations"`
	RelatedFindings      []RelatedFinding        `json:"related_findings"`
	PreventionStrategies []string                `json:"prevention_strategies"`
	ConfidenceScore      float64                 `json:"confidence_score"`
	AnalysisMetadata     map[string]any          `json:"analysis_metadata"`
}

// FindingCounts breaks a finding total down by category.
type FindingCounts struct {
	Total       int `json:"total"`
	Security    int `json:"security"`
	Cost        int `json:"cost"`
	Reliability int `json:"reliability"`
}

// RiskReduction compares risk before and after a fix was applied.
type RiskReduction struct {
	Before              float64 `json:"before"`
	After               float64 `json:"after"`
	ReductionPercentage float64 `json:"reduction_percentage"`
}

// FixAssessment evaluates one applied fix.
type FixAssessment struct {
	FindingID     string  `json:"finding_id"`
	FixApplied    bool    `json:"fix_applied"`
	Effectiveness float64 `json:"effectiveness"`
	Explanation   string  `json:"explanation"`
}

// RemainingIssue describes a finding the fix did not resolve.
type RemainingIssue struct {
	FindingID      string `json:"finding_id"`
	Severity       string `json:"severity"`
	ReasonNotFixed string `json:"reason_not_fixed"`
}

// FixEffectiveness is the typed result of the fix_effectiveness task.
type FixEffectiveness struct {
	FixEffectivenessScore float64          `json:"fix_effectiveness_score"`
	FindingsResolved      FindingCounts    `json:"findings_resolved"`
	FindingsRemaining     FindingCounts    `json:"findings_remaining"`
	RiskReduction         RiskReduction    `json:"risk_reduction"`
	FixAnalysis           []FixAssessment  `json:"fix_analysis"`
	RemainingIssues       []RemainingIssue `json:"remaining_issues"`
	Recommendations       []string         `json:"recommendations"`
	ConfidenceScore       float64          `json:"confidence_score"`
	AnalysisMetadata      map[string]any   `json:"analysis_metadata"`
}
