package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bkeller/terrarisk/internal/adapter/observability"
	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/prompt"
	"github.com/bkeller/terrarisk/internal/store"
)

// Redactor strips credentials from source code before it leaves the process.
// It returns the scrubbed text and the number of distinct secrets removed.
type Redactor interface {
	Redact(input string) (string, int)
}

// Orchestrator drives the full review lifecycle: create a pending record,
// redact the source, invoke the backend chain, validate and score the
// response, and persist each state transition as a new version.
type Orchestrator struct {
	compiler *prompt.Compiler
	pipeline *Pipeline
	builder  Builder
	reviews  store.Store
	redactor Redactor
	obs      *observability.Logger
	now      func() time.Time
}

// NewOrchestrator wires the review engine together. The clock is injectable
// so tests control timestamps. A nil redactor disables redaction.
func NewOrchestrator(compiler *prompt.Compiler, pipeline *Pipeline, builder Builder, reviews store.Store, redactor Redactor, obs *observability.Logger, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if obs == nil {
		obs = observability.NewLogger(zap.NewNop())
	}
	return &Orchestrator{
		compiler: compiler,
		pipeline: pipeline,
		builder:  builder,
		reviews:  reviews,
		redactor: redactor,
		obs:      obs,
		now:      now,
	}
}

// redact scrubs secrets from source before prompt compilation. The stored
// review keeps the caller's original text; only the outbound prompt is
// scrubbed.
func (o *Orchestrator) redact(source string, obs *observability.Logger) string {
	if o.redactor == nil {
		return source
	}
	scrubbed, n := o.redactor.Redact(source)
	if n > 0 {
		obs.Zap().Info("redacted secrets from source", zap.Int("count", n))
	}
	return scrubbed
}

// ReviewSource runs a complete review of infrastructure source code. The
// returned review is always in a terminal state: completed with a real or
// degraded result, or failed when persistence itself broke. Backend failures
// never surface as errors; they produce a degraded result instead.
func (o *Orchestrator) ReviewSource(ctx context.Context, sourceCode string, rc domain.RunContext) (domain.Review, error) {
	obs := o.obs.WithTrace()
	started := o.now()

	rev := domain.NewReview(sourceCode, rc.RunID, rc, started)
	if err := o.reviews.Create(ctx, rev); err != nil {
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}
	obs.Audit("review", rev.ReviewID, "created", zap.String("run_id", rc.RunID))

	rev, err := o.transition(ctx, rev.ReviewID, domain.StatusInProgress, nil)
	if err != nil {
		return domain.Review{}, err
	}

	result, err := o.runReview(ctx, rev.ReviewID, sourceCode, rc, obs)
	if err != nil {
		// Only context errors escape runReview. The failed transition must
		// still be written, so it runs on a cancellation-free context; the
		// chain records the abort instead of stranding the review in_progress.
		if _, ferr := o.transition(context.WithoutCancel(ctx), rev.ReviewID, domain.StatusFailed, nil); ferr != nil {
			obs.Zap().Warn("failed to mark review failed", zap.Error(ferr))
		}
		return domain.Review{}, err
	}

	rev, err = o.transition(ctx, rev.ReviewID, domain.StatusCompleted, &result)
	if err != nil {
		return domain.Review{}, err
	}

	obs.Performance("review_source", o.now().Sub(started),
		zap.String("review_id", rev.ReviewID),
		zap.String("risk", riskLevelString(result.OverallRiskScore)),
		zap.Bool("degraded", result.Degraded()))
	return rev, nil
}

// runReview compiles the prompt, invokes the pipeline, and builds the typed
// result. Backend exhaustion produces the fallback aggregate.
func (o *Orchestrator) runReview(ctx context.Context, reviewID, sourceCode string, rc domain.RunContext, obs *observability.Logger) (domain.AIReviewResult, error) {
	promptText, err := o.compiler.CompileReview(prompt.ReviewInput{
		SourceCode: o.redact(sourceCode, obs),
		Context:    rc,
	})
	if err != nil {
		return domain.AIReviewResult{}, fmt.Errorf("compile prompt: %w", err)
	}

	inv, err := o.pipeline.Invoke(ctx, prompt.TaskPRReview, o.compiler.SystemPrompt(), promptText)
	if err != nil {
		if errors.Is(err, ErrBackendsExhausted) {
			obs.Zap().Warn("all backends exhausted, returning degraded result",
				zap.String("review_id", reviewID))
			return o.builder.FallbackReview(reviewID, len(sourceCode), err.Error(), o.now()), nil
		}
		return domain.AIReviewResult{}, err
	}

	version := o.compiler.Versions().For(prompt.TaskPRReview)
	result, err := o.builder.BuildReview(inv.Payload, reviewID, inv.Backend.Name, version, len(sourceCode), o.now())
	if err != nil {
		// Validated JSON that still cannot map to the typed aggregates is a
		// backend quality problem, not a caller problem. Degrade.
		obs.Zap().Warn("response failed typed mapping, returning degraded result",
			zap.String("review_id", reviewID), zap.Error(err))
		return o.builder.FallbackReview(reviewID, len(sourceCode), err.Error(), o.now()), nil
	}
	return result, nil
}

// transition appends a new review version with the given status and
// optional result.
func (o *Orchestrator) transition(ctx context.Context, reviewID string, status domain.ReviewStatus, result *domain.AIReviewResult) (domain.Review, error) {
	rev, err := o.reviews.Update(ctx, reviewID, store.UpdateFields{
		Status: &status,
		Result: result,
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("update review %s to %s: %w", reviewID, status, err)
	}
	return rev, nil
}

// BatchResult pairs one source input with its review outcome.
type BatchResult struct {
	Name   string
	Review domain.Review
	Err    error
}

// BatchInput names one source text for batch review.
type BatchInput struct {
	Name       string
	SourceCode string
	Context    domain.RunContext
}

// ReviewBatch reviews multiple sources in parallel. Reviews are independent;
// one failing does not cancel the others. The concurrency limit bounds
// simultaneous backend invocations.
func (o *Orchestrator) ReviewBatch(ctx context.Context, inputs []BatchInput, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, in := range inputs {
		g.Go(func() error {
			rev, err := o.ReviewSource(ctx, in.SourceCode, in.Context)
			results[i] = BatchResult{Name: in.Name, Review: rev, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// AnalyzeFailure asks the backend chain why a provisioning run failed,
// optionally informed by the run's prior review. Exhaustion yields a
// degraded analysis with zero confidence.
func (o *Orchestrator) AnalyzeFailure(ctx context.Context, sourceCode string, details prompt.ErrorDetails, previous *domain.AIReviewResult) (domain.FailureAnalysis, error) {
	obs := o.obs.WithTrace()
	started := o.now()

	promptText, err := o.compiler.CompileFailureAnalysis(prompt.FailureInput{
		SourceCode:     o.redact(sourceCode, obs),
		Error:          details,
		PreviousReview: previous,
	})
	if err != nil {
		return domain.FailureAnalysis{}, fmt.Errorf("compile prompt: %w", err)
	}

	inv, err := o.pipeline.Invoke(ctx, prompt.TaskFailureAnalysis, o.compiler.SystemPrompt(), promptText)
	if err != nil {
		if errors.Is(err, ErrBackendsExhausted) {
			return o.builder.FallbackFailureAnalysis(err.Error(), o.now()), nil
		}
		return domain.FailureAnalysis{}, err
	}

	version := o.compiler.Versions().For(prompt.TaskFailureAnalysis)
	analysis, err := o.builder.BuildFailureAnalysis(inv.Payload, inv.Backend.Name, version, o.now())
	if err != nil {
		return o.builder.FallbackFailureAnalysis(err.Error(), o.now()), nil
	}

	obs.Performance("analyze_failure", o.now().Sub(started),
		zap.String("severity", analysis.Severity))
	return analysis, nil
}

// CompareFixEffectiveness assesses how well a fixed version of the source
// resolves previously reported findings.
func (o *Orchestrator) CompareFixEffectiveness(ctx context.Context, originalCode, fixedCode string, originalFindings, fixedFindings []domain.Finding) (domain.FixEffectiveness, error) {
	obs := o.obs.WithTrace()
	started := o.now()

	promptText, err := o.compiler.CompileFixEffectiveness(prompt.FixInput{
		OriginalCode:     o.redact(originalCode, obs),
		FixedCode:        o.redact(fixedCode, obs),
		OriginalFindings: originalFindings,
		FixedFindings:    fixedFindings,
	})
	if err != nil {
		return domain.FixEffectiveness{}, fmt.Errorf("compile prompt: %w", err)
	}

	inv, err := o.pipeline.Invoke(ctx, prompt.TaskFixEffectiveness, o.compiler.SystemPrompt(), promptText)
	if err != nil {
		if errors.Is(err, ErrBackendsExhausted) {
			return o.builder.FallbackFixEffectiveness(err.Error(), o.now()), nil
		}
		return domain.FixEffectiveness{}, err
	}

	version := o.compiler.Versions().For(prompt.TaskFixEffectiveness)
	effectiveness, err := o.builder.BuildFixEffectiveness(inv.Payload, inv.Backend.Name, version, o.now())
	if err != nil {
		return o.builder.FallbackFixEffectiveness(err.Error(), o.now()), nil
	}

	obs.Performance("compare_fix_effectiveness", o.now().Sub(started),
		zap.Float64("score", effectiveness.FixEffectivenessScore))
	return effectiveness, nil
}
