// Package prompt compiles versioned prompts for each review task type.
// Compilation is deterministic: the same inputs always render the same
// string, so prompt fixtures can be asserted byte-for-byte in tests.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/bkeller/terrarisk/internal/domain"
)

// TaskType selects which prompt/schema pair governs an invocation.
type TaskType string

const (
	TaskPRReview         TaskType = "pr_review"
	TaskFailureAnalysis  TaskType = "failure_analysis"
	TaskFixEffectiveness TaskType = "fix_effectiveness"
)

// ParseTaskType validates a task type string.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskPRReview, TaskFailureAnalysis, TaskFixEffectiveness:
		return TaskType(s), nil
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// Versions labels the prompt format per task so stored metadata can
// distinguish results produced by older prompt revisions.
type Versions struct {
	PRReview         string
	FailureAnalysis  string
	FixEffectiveness string
}

// DefaultVersions returns the current prompt version labels.
func DefaultVersions() Versions {
	return Versions{
		PRReview:         "v2.1",
		FailureAnalysis:  "v1.3",
		FixEffectiveness: "v1.0",
	}
}

// For returns the version label for a task type.
func (v Versions) For(task TaskType) string {
	switch task {
	case TaskPRReview:
		return v.PRReview
	case TaskFailureAnalysis:
		return v.FailureAnalysis
	case TaskFixEffectiveness:
		return v.FixEffectiveness
	default:
		return "v1.0"
	}
}

// Compiler renders prompts from parsed templates. Construct once and share;
// it holds no mutable state.
type Compiler struct {
	versions  Versions
	review    *template.Template
	failure   *template.Template
	fixReview *template.Template
}

// NewCompiler parses the prompt templates with the given version labels.
func NewCompiler(versions Versions) (*Compiler, error) {
	funcs := template.FuncMap{"join": strings.Join}

	review, err := template.New("pr_review").Funcs(funcs).Parse(prReviewTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse pr_review template: %w", err)
	}
	failure, err := template.New("failure_analysis").Funcs(funcs).Parse(failureAnalysisTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse failure_analysis template: %w", err)
	}
	fix, err := template.New("fix_effectiveness").Funcs(funcs).Parse(fixEffectivenessTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse fix_effectiveness template: %w", err)
	}

	return &Compiler{versions: versions, review: review, failure: failure, fixReview: fix}, nil
}

// Versions returns the version labels the compiler was built with.
func (c *Compiler) Versions() Versions {
	return c.versions
}

// SystemPrompt is the instruction shared by every backend invocation.
func (c *Compiler) SystemPrompt() string {
	return `You are an expert infrastructure security, cost, and reliability analyst.
Your responses must be valid JSON only, following the exact schema provided.
Be thorough, specific, and accurate in your analysis.
Always include line numbers when possible.
Provide actionable recommendations.`
}

// ReviewInput is the input to the pr_review prompt.
type ReviewInput struct {
	SourceCode string
	Context    domain.RunContext
}

// ErrorDetails carries failure information from the originating run.
type ErrorDetails struct {
	ErrorType    string
	ErrorMessage string
	ErrorCode    string
	StackTrace   string
}

// FailureInput is the input to the failure_analysis prompt.
type FailureInput struct {
	SourceCode     string
	Error          ErrorDetails
	PreviousReview *domain.AIReviewResult
}

// FixInput is the input to the fix_effectiveness prompt.
type FixInput struct {
	OriginalCode     string
	FixedCode        string
	OriginalFindings []domain.Finding
	FixedFindings    []domain.Finding
}

const maxStackTrace = 500

// maxPromptFindings caps how many findings are embedded verbatim in a
// fix-effectiveness prompt; the counts still reflect the full lists.
const maxPromptFindings = 5

// CompileReview renders the pr_review prompt.
func (c *Compiler) CompileReview(in ReviewInput) (string, error) {
	data := struct {
		SourceCode    string
		HasContext    bool
		Context       domain.RunContext
		ChangedFiles  string
		CodeLength    int
		PromptVersion string
	}{
		SourceCode:    in.SourceCode,
		HasContext:    !in.Context.IsZero(),
		Context:       in.Context,
		ChangedFiles:  strings.Join(in.Context.ChangedFiles, ", "),
		CodeLength:    len(in.SourceCode),
		PromptVersion: c.versions.PRReview,
	}
	return c.render(c.review, data)
}

// CompileFailureAnalysis renders the failure_analysis prompt. The stack
// trace is truncated so one noisy run cannot blow the token budget.
func (c *Compiler) CompileFailureAnalysis(in FailureInput) (string, error) {
	trace := in.Error.StackTrace
	if len(trace) > maxStackTrace {
		trace = trace[:maxStackTrace]
	}

	data := struct {
		SourceCode    string
		Error         ErrorDetails
		StackTrace    string
		HasPrevious   bool
		PrevRisk      float64
		PrevFindings  int
		PromptVersion string
	}{
		SourceCode:    in.SourceCode,
		Error:         in.Error,
		StackTrace:    trace,
		PromptVersion: c.versions.FailureAnalysis,
	}
	if in.PreviousReview != nil {
		data.HasPrevious = true
		data.PrevRisk = in.PreviousReview.OverallRiskScore
		data.PrevFindings = len(in.PreviousReview.SecurityAnalysis.Findings)
	}
	return c.render(c.failure, data)
}

// CompileFixEffectiveness renders the fix_effectiveness prompt.
func (c *Compiler) CompileFixEffectiveness(in FixInput) (string, error) {
	originalJSON, err := marshalFindings(in.OriginalFindings)
	if err != nil {
		return "", err
	}
	fixedJSON, err := marshalFindings(in.FixedFindings)
	if err != nil {
		return "", err
	}

	data := struct {
		OriginalCode     string
		FixedCode        string
		OriginalCount    int
		FixedCount       int
		OriginalFindings string
		FixedFindings    string
		PromptVersion    string
	}{
		OriginalCode:     in.OriginalCode,
		FixedCode:        in.FixedCode,
		OriginalCount:    len(in.OriginalFindings),
		FixedCount:       len(in.FixedFindings),
		OriginalFindings: originalJSON,
		FixedFindings:    fixedJSON,
		PromptVersion:    c.versions.FixEffectiveness,
	}
	return c.render(c.fixReview, data)
}

// Compile renders the prompt for a ReviewInput under the given task type,
// for callers that dispatch on the selector rather than calling the typed
// method directly.
func (c *Compiler) Compile(task TaskType, in ReviewInput) (string, error) {
	switch task {
	case TaskPRReview:
		return c.CompileReview(in)
	case TaskFailureAnalysis:
		return c.CompileFailureAnalysis(FailureInput{SourceCode: in.SourceCode})
	case TaskFixEffectiveness:
		return c.CompileFixEffectiveness(FixInput{OriginalCode: in.SourceCode})
	default:
		return "", fmt.Errorf("unknown task type %q", task)
	}
}

func (c *Compiler) render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func marshalFindings(findings []domain.Finding) (string, error) {
	if len(findings) > maxPromptFindings {
		findings = findings[:maxPromptFindings]
	}
	if findings == nil {
		findings = []domain.Finding{}
	}
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal findings: %w", err)
	}
	return string(data), nil
}
