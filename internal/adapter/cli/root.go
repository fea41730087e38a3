// Package cli wires the cobra command tree. All collaborators are injected
// so tests can run commands against fakes.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bkeller/terrarisk/internal/adapter/output/markdown"
	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/prompt"
	"github.com/bkeller/terrarisk/internal/store"
	"github.com/bkeller/terrarisk/internal/usecase/review"
)

// SourceReviewer runs reviews and analyses against the backend chain.
type SourceReviewer interface {
	ReviewSource(ctx context.Context, sourceCode string, rc domain.RunContext) (domain.Review, error)
	ReviewBatch(ctx context.Context, inputs []review.BatchInput, concurrency int) []review.BatchResult
	AnalyzeFailure(ctx context.Context, sourceCode string, details prompt.ErrorDetails, previous *domain.AIReviewResult) (domain.FailureAnalysis, error)
	CompareFixEffectiveness(ctx context.Context, originalCode, fixedCode string, originalFindings, fixedFindings []domain.Finding) (domain.FixEffectiveness, error)
}

// ContextEnricher fills git-derived run context fields.
type ContextEnricher interface {
	Enrich(rc domain.RunContext, baseRef string) (domain.RunContext, error)
}

// AnalyticsReader serves the analytics command, possibly through a cache.
type AnalyticsReader interface {
	Aggregate(ctx context.Context, maxAgeDays int) (store.Analytics, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Reviewer    SourceReviewer
	Reviews     store.Store
	Analytics   AnalyticsReader
	Enricher    ContextEnricher
	Args        Arguments
	Concurrency int
	MaxAgeDays  int
	Version     string
}

// NewRootCommand constructs the root cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:     "trisk",
		Short:   "AI-driven infrastructure code risk review",
		Version: versionString,
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	if deps.Args.OutWriter != nil {
		root.SetOut(deps.Args.OutWriter)
	}
	if deps.Args.ErrWriter != nil {
		root.SetErr(deps.Args.ErrWriter)
	}

	root.AddCommand(
		newReviewCommand(deps),
		newFailureCommand(deps),
		newFixCheckCommand(deps),
		newShowCommand(deps),
		newListCommand(deps),
		newAnalyticsCommand(deps),
	)

	return root
}

func newReviewCommand(deps Dependencies) *cobra.Command {
	var runID, stackID, baseRef, reportDir string

	cmd := &cobra.Command{
		Use:   "review <file>...",
		Short: "Review infrastructure source files for security, cost, and reliability risk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := domain.RunContext{RunID: runID, StackID: stackID}
			if deps.Enricher != nil {
				enriched, err := deps.Enricher.Enrich(rc, baseRef)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: git context unavailable: %v\n", err)
				} else {
					rc = enriched
				}
			}

			inputs := make([]review.BatchInput, 0, len(args))
			for _, path := range args {
				source, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				inputs = append(inputs, review.BatchInput{
					Name:       filepath.Base(path),
					SourceCode: string(source),
					Context:    rc,
				})
			}

			if len(inputs) == 1 {
				rev, err := deps.Reviewer.ReviewSource(cmd.Context(), inputs[0].SourceCode, rc)
				if err != nil {
					return err
				}
				if err := writeReport(cmd.ErrOrStderr(), reportDir, rev); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rev)
			}

			results := deps.Reviewer.ReviewBatch(cmd.Context(), inputs, deps.Concurrency)
			var failed int
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Name, res.Err)
					continue
				}
				if err := writeReport(cmd.ErrOrStderr(), reportDir, res.Review); err != nil {
					return err
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d reviews failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "originating run id")
	cmd.Flags().StringVar(&stackID, "stack", "", "stack id")
	cmd.Flags().StringVar(&baseRef, "base", "", "base ref for changed-file detection")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "also write a Markdown report per review into this directory")

	return cmd
}

// writeReport writes a Markdown report for rev when dir is set.
func writeReport(errOut io.Writer, dir string, rev domain.Review) error {
	if dir == "" {
		return nil
	}
	path, err := markdown.NewWriter().WriteFile(dir, rev)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(errOut, "report written: %s\n", path)
	return nil
}

func newFailureCommand(deps Dependencies) *cobra.Command {
	var errType, errMessage, errCode, reviewID string

	cmd := &cobra.Command{
		Use:   "failure <file>",
		Short: "Analyze why a provisioning run failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			var previous *domain.AIReviewResult
			if reviewID != "" {
				rev, err := deps.Reviews.GetLatest(cmd.Context(), reviewID)
				if err != nil {
					return fmt.Errorf("load review %s: %w", reviewID, err)
				}
				previous = rev.Result
			}

			analysis, err := deps.Reviewer.AnalyzeFailure(cmd.Context(), string(source), prompt.ErrorDetails{
				ErrorType:    errType,
				ErrorMessage: errMessage,
				ErrorCode:    errCode,
			}, previous)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}

	cmd.Flags().StringVar(&errType, "error-type", "", "error type reported by the run")
	cmd.Flags().StringVar(&errMessage, "error-message", "", "error message reported by the run")
	cmd.Flags().StringVar(&errCode, "error-code", "", "provider error code")
	cmd.Flags().StringVar(&reviewID, "review", "", "prior review id for context")

	return cmd
}

func newFixCheckCommand(deps Dependencies) *cobra.Command {
	var reviewID string

	cmd := &cobra.Command{
		Use:   "fixcheck <original-file> <fixed-file>",
		Short: "Assess how well a fix resolves previously reported findings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			fixed, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			var findings []domain.Finding
			if reviewID != "" {
				rev, err := deps.Reviews.GetLatest(cmd.Context(), reviewID)
				if err != nil {
					return fmt.Errorf("load review %s: %w", reviewID, err)
				}
				if rev.Result != nil {
					findings = collectFindings(*rev.Result)
				}
			}

			effectiveness, err := deps.Reviewer.CompareFixEffectiveness(
				cmd.Context(), string(original), string(fixed), findings, nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), effectiveness)
		},
	}

	cmd.Flags().StringVar(&reviewID, "review", "", "review id whose findings the fix addresses")

	return cmd
}

func newShowCommand(deps Dependencies) *cobra.Command {
	var version int
	var format string

	cmd := &cobra.Command{
		Use:   "show <review-id>",
		Short: "Show a review, latest version by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				rev domain.Review
				err error
			)
			if version > 0 {
				rev, err = deps.Reviews.GetVersion(cmd.Context(), args[0], version)
			} else {
				rev, err = deps.Reviews.GetLatest(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), rev)
			case "markdown":
				return markdown.NewWriter().Write(cmd.OutOrStdout(), rev)
			default:
				return fmt.Errorf("unknown format %q (want json or markdown)", format)
			}
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "specific version to show")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or markdown")

	return cmd
}

func newListCommand(deps Dependencies) *cobra.Command {
	var runID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent reviews, optionally filtered by run or status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reviews []domain.Review
				err     error
			)
			switch {
			case runID != "":
				reviews, err = deps.Reviews.QueryByRun(cmd.Context(), runID)
			case status != "":
				reviews, err = deps.Reviews.QueryByStatus(cmd.Context(), domain.ReviewStatus(status))
			default:
				reviews, err = deps.Reviews.ScanRecent(cmd.Context(), limit, deps.MaxAgeDays)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), reviews)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "filter by originating run id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum reviews to list")

	return cmd
}

func newAnalyticsCommand(deps Dependencies) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize review history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window := days
			if window <= 0 {
				window = deps.MaxAgeDays
			}
			analytics, err := deps.Analytics.Aggregate(cmd.Context(), window)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analytics)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "analysis window in days")

	return cmd
}

// collectFindings flattens a result's three finding lists.
func collectFindings(result domain.AIReviewResult) []domain.Finding {
	var findings []domain.Finding
	findings = append(findings, result.SecurityAnalysis.Findings...)
	findings = append(findings, result.CostAnalysis.CostOptimizations...)
	findings = append(findings, result.ReliabilityAnalysis.SinglePointsOfFailure...)
	return findings
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
