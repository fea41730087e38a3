package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/prompt"
)

func newCompiler(t *testing.T) *prompt.Compiler {
	t.Helper()
	c, err := prompt.NewCompiler(prompt.DefaultVersions())
	require.NoError(t, err)
	return c
}

func TestParseTaskType(t *testing.T) {
	for _, valid := range []string{"pr_review", "failure_analysis", "fix_effectiveness"} {
		task, err := prompt.ParseTaskType(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(task))
	}

	_, err := prompt.ParseTaskType("summarize")
	assert.Error(t, err)
}

func TestVersionsFor(t *testing.T) {
	v := prompt.DefaultVersions()
	assert.Equal(t, "v2.1", v.For(prompt.TaskPRReview))
	assert.Equal(t, "v1.3", v.For(prompt.TaskFailureAnalysis))
	assert.Equal(t, "v1.0", v.For(prompt.TaskFixEffectiveness))
}

func TestCompileReview(t *testing.T) {
	c := newCompiler(t)

	source := `resource "aws_s3_bucket" "b" {
  acl = "public-read"
}`
	rendered, err := c.CompileReview(prompt.ReviewInput{
		SourceCode: source,
		Context: domain.RunContext{
			RunID:        "run-9",
			StackID:      "vpc-prod",
			ChangedFiles: []string{"main.tf", "vpc.tf"},
			Branch:       "feature/nat",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, rendered, source)
	assert.Contains(t, rendered, "Run ID: run-9")
	assert.Contains(t, rendered, "Stack: vpc-prod")
	assert.Contains(t, rendered, "Changed Files: main.tf, vpc.tf")
	assert.Contains(t, rendered, "Branch: feature/nat")
	assert.Contains(t, rendered, `"prompt_version": "v2.1"`)
	assert.Contains(t, rendered, `"security_analysis"`)
	assert.Contains(t, rendered, `"overall_risk_score"`)
	assert.Contains(t, rendered, "Return ONLY valid JSON")
}

func TestCompileReviewOmitsEmptyContext(t *testing.T) {
	c := newCompiler(t)

	rendered, err := c.CompileReview(prompt.ReviewInput{SourceCode: "locals {}"})
	require.NoError(t, err)

	assert.NotContains(t, rendered, "Run Context:")
}

func TestCompileReviewIsDeterministic(t *testing.T) {
	c := newCompiler(t)
	in := prompt.ReviewInput{
		SourceCode: "module \"vpc\" {}",
		Context:    domain.RunContext{RunID: "run-1", CommitSHA: "abc"},
	}

	first, err := c.CompileReview(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.CompileReview(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompileFailureAnalysis(t *testing.T) {
	c := newCompiler(t)

	rendered, err := c.CompileFailureAnalysis(prompt.FailureInput{
		SourceCode: "resource \"aws_db_instance\" \"db\" {}",
		Error: prompt.ErrorDetails{
			ErrorType:    "ApplyError",
			ErrorMessage: "instance class not available",
			StackTrace:   strings.Repeat("x", 900),
		},
		PreviousReview: &domain.AIReviewResult{OverallRiskScore: 0.72},
	})
	require.NoError(t, err)

	assert.Contains(t, rendered, "Error Type: ApplyError")
	assert.Contains(t, rendered, "instance class not available")
	assert.Contains(t, rendered, "Previous Risk Score: 0.72")
	assert.Contains(t, rendered, `"root_cause"`)
	assert.Contains(t, rendered, `"prompt_version": "v1.3"`)

	// Stack trace is truncated to 500 characters.
	assert.NotContains(t, rendered, strings.Repeat("x", 501))
	assert.Contains(t, rendered, strings.Repeat("x", 500))
}

func TestCompileFixEffectiveness(t *testing.T) {
	c := newCompiler(t)

	findings := make([]domain.Finding, 8)
	for i := range findings {
		findings[i] = domain.Finding{FindingID: "f", Category: domain.CategorySecurity, Severity: domain.SeverityLow}
	}

	rendered, err := c.CompileFixEffectiveness(prompt.FixInput{
		OriginalCode:     "acl = \"public-read\"",
		FixedCode:        "acl = \"private\"",
		OriginalFindings: findings,
		FixedFindings:    nil,
	})
	require.NoError(t, err)

	assert.Contains(t, rendered, "Original Findings (8):")
	assert.Contains(t, rendered, "Fixed Findings (0):")
	assert.Contains(t, rendered, `"fix_effectiveness_score"`)
	assert.Contains(t, rendered, `"prompt_version": "v1.0"`)

	// Only the first five findings are embedded verbatim.
	assert.Equal(t, 5, strings.Count(rendered, `"finding_id": "f"`))
}

func TestCompileDispatch(t *testing.T) {
	c := newCompiler(t)

	for _, task := range []prompt.TaskType{prompt.TaskPRReview, prompt.TaskFailureAnalysis, prompt.TaskFixEffectiveness} {
		rendered, err := c.Compile(task, prompt.ReviewInput{SourceCode: "locals {}"})
		require.NoError(t, err)
		assert.NotEmpty(t, rendered)
	}

	_, err := c.Compile("mystery", prompt.ReviewInput{})
	assert.Error(t, err)
}

func TestSystemPrompt(t *testing.T) {
	c := newCompiler(t)
	assert.Contains(t, c.SystemPrompt(), "valid JSON only")
}
