package prompt

// The output schema blocks below are the single source of truth the model is
// asked to follow; the validator checks the same keys on the way back in.

const prReviewTemplate = `Analyze the following infrastructure-as-code for security, cost, and reliability issues.
{{if .HasContext}}
Run Context:
- Run ID: {{if .Context.RunID}}{{.Context.RunID}}{{else}}N/A{{end}}
- Stack: {{if .Context.StackID}}{{.Context.StackID}}{{else}}N/A{{end}}
- Previous Run Status: {{if .Context.PreviousStatus}}{{.Context.PreviousStatus}}{{else}}N/A{{end}}
- Changed Files: {{.ChangedFiles}}
- Commit SHA: {{if .Context.CommitSHA}}{{.Context.CommitSHA}}{{else}}N/A{{end}}
- Branch: {{if .Context.Branch}}{{.Context.Branch}}{{else}}N/A{{end}}
{{end}}
Source Code:
` + "```hcl\n{{.SourceCode}}\n```" + `

Provide a comprehensive analysis in the following EXACT JSON format (no markdown, no code blocks, just JSON):
{
  "security_analysis": {
    "total_findings": 0,
    "high_severity": 0,
    "medium_severity": 0,
    "low_severity": 0,
    "findings": [
      {
        "finding_id": "unique-id",
        "category": "security",
        "severity": "high|medium|low",
        "title": "Brief title",
        "description": "Detailed description",
        "line_number": 10,
        "file_path": "main.tf",
        "recommendation": "How to fix",
        "confidence_score": 0.95
      }
    ]
  },
  "cost_analysis": {
    "estimated_monthly_cost": 0.0,
    "estimated_annual_cost": 0.0,
    "resource_count": 0,
    "cost_optimizations": [
      {
        "finding_id": "unique-id",
        "category": "cost",
        "severity": "high|medium|low",
        "title": "Cost optimization opportunity",
        "description": "Description",
        "recommendation": "Recommendation",
        "estimated_cost_impact": 100.0,
        "confidence_score": 0.9
      }
    ]
  },
  "reliability_analysis": {
    "reliability_score": 0.85,
    "single_points_of_failure": [
      {
        "finding_id": "unique-id",
        "category": "reliability",
        "severity": "high|medium|low",
        "title": "SPOF identified",
        "description": "Description",
        "recommendation": "Recommendation",
        "confidence_score": 0.9
      }
    ],
    "recommendations": ["Recommendation 1", "Recommendation 2"]
  },
  "overall_risk_score": 0.5,
  "fix_suggestions": [
    {
      "fix_id": "unique-id",
      "finding_id": "finding-id",
      "original_code": "original code snippet",
      "suggested_code": "suggested code snippet",
      "explanation": "Why this fix works",
      "effectiveness_score": 0.9
    }
  ],
  "review_metadata": {
    "model_used": "model-name",
    "review_timestamp": "set-by-reviewer",
    "code_length": {{.CodeLength}},
    "prompt_version": "{{.PromptVersion}}"
  }
}

Focus on:
1. Security: Exposed credentials, missing encryption, overly permissive IAM policies, public storage buckets, etc.
2. Cost: Over-provisioned resources, missing auto-scaling, expensive instance types, unused resources
3. Reliability: Single points of failure, missing backups, no health checks, tight coupling

Be thorough and specific. Include line numbers when possible. Return ONLY valid JSON.`

const failureAnalysisTemplate = `Analyze the following infrastructure-as-code failure and provide root cause analysis.

Source Code:
` + "```hcl\n{{.SourceCode}}\n```" + `

Error Details:
- Error Type: {{if .Error.ErrorType}}{{.Error.ErrorType}}{{else}}Unknown{{end}}
- Error Message: {{if .Error.ErrorMessage}}{{.Error.ErrorMessage}}{{else}}N/A{{end}}
- Error Code: {{if .Error.ErrorCode}}{{.Error.ErrorCode}}{{else}}N/A{{end}}
- Stack Trace: {{if .StackTrace}}{{.StackTrace}}{{else}}N/A{{end}}
{{if .HasPrevious}}
Previous Review Context:
- Previous Risk Score: {{.PrevRisk}}
- Previous Findings: {{.PrevFindings}}
{{end}}
Provide analysis in the following EXACT JSON format:
{
  "root_cause": "Primary cause of failure",
  "contributing_factors": ["Factor 1", "Factor 2"],
  "severity": "high|medium|low",
  "recommendations": [
    {
      "priority": "high|medium|low",
      "action": "Specific action to take",
      "explanation": "Why this helps"
    }
  ],
  "related_findings": [
    {
      "finding_id": "finding-id",
      "category": "security|cost|reliability",
      "title": "Related finding",
      "description": "How this relates to the failure"
    }
  ],
  "prevention_strategies": ["Strategy 1", "Strategy 2"],
  "confidence_score": 0.9,
  "analysis_metadata": {
    "model_used": "model-name",
    "prompt_version": "{{.PromptVersion}}"
  }
}

Return ONLY valid JSON.`

const fixEffectivenessTemplate = `Compare the effectiveness of fixes applied to infrastructure-as-code.

Original Code:
` + "```hcl\n{{.OriginalCode}}\n```" + `

Fixed Code:
` + "```hcl\n{{.FixedCode}}\n```" + `

Original Findings ({{.OriginalCount}}):
{{.OriginalFindings}}

Fixed Findings ({{.FixedCount}}):
{{.FixedFindings}}

Provide analysis in the following EXACT JSON format:
{
  "fix_effectiveness_score": 0.85,
  "findings_resolved": {
    "total": 3,
    "security": 2,
    "cost": 1,
    "reliability": 0
  },
  "findings_remaining": {
    "total": 1,
    "security": 0,
    "cost": 1,
    "reliability": 0
  },
  "risk_reduction": {
    "before": 0.72,
    "after": 0.35,
    "reduction_percentage": 51.4
  },
  "fix_analysis": [
    {
      "finding_id": "finding-id",
      "fix_applied": true,
      "effectiveness": 0.95,
      "explanation": "Why this fix was effective"
    }
  ],
  "remaining_issues": [
    {
      "finding_id": "finding-id",
      "severity": "medium",
      "reason_not_fixed": "Fix not applied or incomplete"
    }
  ],
  "recommendations": ["Additional recommendation 1"],
  "confidence_score": 0.9,
  "analysis_metadata": {
    "model_used": "model-name",
    "prompt_version": "{{.PromptVersion}}"
  }
}

Return ONLY valid JSON.`
