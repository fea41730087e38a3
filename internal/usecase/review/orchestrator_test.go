package review

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bkeller/terrarisk/internal/adapter/llm"
	llmhttp "github.com/bkeller/terrarisk/internal/adapter/llm/http"
	"github.com/bkeller/terrarisk/internal/adapter/observability"
	"github.com/bkeller/terrarisk/internal/domain"
	"github.com/bkeller/terrarisk/internal/prompt"
	"github.com/bkeller/terrarisk/internal/redaction"
	"github.com/bkeller/terrarisk/internal/scoring"
	"github.com/bkeller/terrarisk/internal/store"
)

// memoryStore is a minimal in-memory Store for orchestrator tests. It keeps
// every version, like the real adapter.
type memoryStore struct {
	mu       sync.Mutex
	versions map[string][]domain.Review
}

func newMemoryStore() *memoryStore {
	return &memoryStore{versions: make(map[string][]domain.Review)}
}

func (m *memoryStore) Create(ctx context.Context, review domain.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[review.ReviewID] = []domain.Review{review}
	return nil
}

func (m *memoryStore) GetLatest(_ context.Context, reviewID string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain, ok := m.versions[reviewID]
	if !ok {
		return domain.Review{}, store.ErrNotFound
	}
	return chain[len(chain)-1], nil
}

func (m *memoryStore) GetVersion(_ context.Context, reviewID string, version int) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rev := range m.versions[reviewID] {
		if rev.Version == version {
			return rev, nil
		}
	}
	return domain.Review{}, store.ErrNotFound
}

func (m *memoryStore) Update(ctx context.Context, reviewID string, fields store.UpdateFields) (domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return domain.Review{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chain, ok := m.versions[reviewID]
	if !ok {
		return domain.Review{}, store.ErrNotFound
	}

	next := chain[len(chain)-1]
	next.PreviousVersionID = next.VersionID()
	next.Version++
	if fields.Status != nil {
		next.Status = *fields.Status
	}
	if fields.Result != nil {
		next.Result = fields.Result
	}
	m.versions[reviewID] = append(chain, next)
	return next, nil
}

func (m *memoryStore) QueryByRun(_ context.Context, runID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, chain := range m.versions {
		latest := chain[len(chain)-1]
		if latest.RunID == runID {
			out = append(out, latest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) QueryByStatus(_ context.Context, status domain.ReviewStatus) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, chain := range m.versions {
		latest := chain[len(chain)-1]
		if latest.Status == status {
			out = append(out, latest)
		}
	}
	return out, nil
}

func (m *memoryStore) ScanRecent(_ context.Context, limit, _ int) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, chain := range m.versions {
		out = append(out, chain[len(chain)-1])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) Aggregate(_ context.Context, _ int) (store.Analytics, error) {
	return store.Analytics{}, nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) chain(reviewID string) []domain.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[reviewID]
}

func newTestOrchestrator(t *testing.T, primary, fallback llm.Client, reviews store.Store) *Orchestrator {
	t.Helper()

	compiler, err := prompt.NewCompiler(prompt.DefaultVersions())
	require.NoError(t, err)

	pipeline := newTestPipeline(t, primary, fallback)
	builder := NewBuilder(scoring.DefaultConfidenceTable())
	obs := observability.NewLogger(zap.NewNop())
	clock := func() time.Time { return buildTime }

	return NewOrchestrator(compiler, pipeline, builder, reviews, nil, obs, clock)
}

func TestReviewSourceHappyPath(t *testing.T) {
	primary := &scriptedClient{texts: []string{validPRReview}, errs: []error{nil}}
	fallback := &scriptedClient{texts: []string{""}, errs: []error{nil}}
	reviews := newMemoryStore()

	orch := newTestOrchestrator(t, primary, fallback, reviews)
	rc := domain.RunContext{RunID: "run-42", Branch: "main"}

	rev, err := orch.ReviewSource(context.Background(), "resource {}", rc)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, rev.Status)
	require.NotNil(t, rev.Result)
	assert.False(t, rev.Result.Degraded())
	assert.Equal(t, rev.ReviewID, rev.Result.ReviewID)
	assert.Equal(t, "claude-3-5-sonnet", rev.Result.ReviewMetadata["model_used"])

	// The lifecycle leaves a 3-version chain: pending, in_progress, completed.
	chain := reviews.chain(rev.ReviewID)
	require.Len(t, chain, 3)
	assert.Equal(t, domain.StatusPending, chain[0].Status)
	assert.Equal(t, domain.StatusInProgress, chain[1].Status)
	assert.Equal(t, domain.StatusCompleted, chain[2].Status)
	for i := 1; i < len(chain); i++ {
		assert.Equal(t, chain[i-1].Version+1, chain[i].Version)
		assert.Equal(t, chain[i-1].VersionID(), chain[i].PreviousVersionID)
	}
}

func TestReviewSourceRedactsPrompt(t *testing.T) {
	primary := &scriptedClient{texts: []string{validPRReview}, errs: []error{nil}}
	fallback := &scriptedClient{texts: []string{""}, errs: []error{nil}}
	reviews := newMemoryStore()

	orch := newTestOrchestrator(t, primary, fallback, reviews)
	orch.redactor = redaction.NewEngine()

	source := `resource "aws_db_instance" "main" {
  password = "hunter2hunter2"
}`
	rev, err := orch.ReviewSource(context.Background(), source, domain.RunContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, rev.Status)

	primary.mu.Lock()
	sent := primary.lastReq.Prompt
	primary.mu.Unlock()
	assert.NotContains(t, sent, "hunter2hunter2")
	assert.Contains(t, sent, "<REDACTED:")
}

func TestReviewSourceDegradesWhenBackendsExhausted(t *testing.T) {
	down := llmhttp.NewServiceUnavailableError("anthropic", "down")
	primary := &scriptedClient{texts: []string{""}, errs: []error{down}}
	fallback := &scriptedClient{texts: []string{"not json at all"}, errs: []error{nil}}
	reviews := newMemoryStore()

	orch := newTestOrchestrator(t, primary, fallback, reviews)

	rev, err := orch.ReviewSource(context.Background(), "resource {}", domain.RunContext{})
	require.NoError(t, err, "backend exhaustion must not surface as an error")

	assert.Equal(t, domain.StatusCompleted, rev.Status)
	require.NotNil(t, rev.Result)
	assert.True(t, rev.Result.Degraded())
	assert.InDelta(t, 0.5, rev.Result.OverallRiskScore, 1e-9)
	assert.Empty(t, rev.Result.SecurityAnalysis.Findings)
}

// cancellingClient cancels the run's context from inside the backend call,
// simulating a caller timeout firing mid-invocation.
type cancellingClient struct {
	cancel context.CancelFunc
}

func (c *cancellingClient) Invoke(ctx context.Context, _ llm.Request) (llm.Response, error) {
	c.cancel()
	return llm.Response{}, ctx.Err()
}

func TestReviewSourceCancelledMarksFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := &cancellingClient{cancel: cancel}
	fallback := &scriptedClient{texts: []string{""}, errs: []error{nil}}
	reviews := newMemoryStore()

	orch := newTestOrchestrator(t, primary, fallback, reviews)

	_, err := orch.ReviewSource(ctx, "resource {}", domain.RunContext{})
	require.ErrorIs(t, err, context.Canceled)

	// The abort must still be recorded even though the run's context is
	// dead: the chain terminates at failed, never stranded in_progress.
	var reviewID string
	for id := range reviews.versions {
		reviewID = id
	}
	require.NotEmpty(t, reviewID)

	chain := reviews.chain(reviewID)
	require.Len(t, chain, 3)
	assert.Equal(t, domain.StatusInProgress, chain[1].Status)
	assert.Equal(t, domain.StatusFailed, chain[2].Status)
}

func TestReviewBatchIndependence(t *testing.T) {
	primary := &scriptedClient{texts: []string{validPRReview}, errs: []error{nil}}
	fallback := &scriptedClient{texts: []string{""}, errs: []error{nil}}
	reviews := newMemoryStore()

	orch := newTestOrchestrator(t, primary, fallback, reviews)

	inputs := []BatchInput{
		{Name: "network.tf", SourceCode: "resource \"aws_vpc\" \"a\" {}"},
		{Name: "compute.tf", SourceCode: "resource \"aws_instance\" \"b\" {}"},
		{Name: "storage.tf", SourceCode: "resource \"aws_s3_bucket\" \"c\" {}"},
	}

	results := orch.ReviewBatch(context.Background(), inputs, 2)
	require.Len(t, results, 3)

	seen := make(map[string]bool)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, domain.StatusCompleted, res.Review.Status)
		seen[res.Review.ReviewID] = true
	}
	assert.Len(t, seen, 3, "each input gets its own review")
}

func TestAnalyzeFailure(t *testing.T) {
	analysis := `{
		"root_cause": "IAM role lacks s3:PutObject",
		"contributing_factors": [],
		"severity": "high",
		"recommendations": [{"priority": "high", "action": "attach policy", "explanation": "x"}],
		"related_findings": [],
		"prevention_strategies": [],
		"confidence_score": 0.9,
		"analysis_metadata": {}
	}`
	primary := &scriptedClient{texts: []string{analysis}, errs: []error{nil}}
	fallback := &scriptedClient{texts: []string{""}, errs: []error{nil}}

	orch := newTestOrchestrator(t, primary, fallback, newMemoryStore())

	got, err := orch.AnalyzeFailure(context.Background(), "resource {}", prompt.ErrorDetails{
		ErrorType:    "AccessDenied",
		ErrorMessage: "not authorized",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "IAM role lacks s3:PutObject", got.RootCause)
	assert.Equal(t, "v1.3", got.AnalysisMetadata["prompt_version"])
}

func TestAnalyzeFailureDegrades(t *testing.T) {
	down := llmhttp.NewServiceUnavailableError("anthropic", "down")
	primary := &scriptedClient{texts: []string{""}, errs: []error{down}}
	fallback := &scriptedClient{texts: []string{"no json"}, errs: []error{nil}}

	orch := newTestOrchestrator(t, primary, fallback, newMemoryStore())

	got, err := orch.AnalyzeFailure(context.Background(), "resource {}", prompt.ErrorDetails{}, nil)
	require.NoError(t, err)

	assert.Zero(t, got.ConfidenceScore)
	assert.Equal(t, true, got.AnalysisMetadata["degraded"])
}

func TestCompareFixEffectiveness(t *testing.T) {
	effectiveness := `{
		"fix_effectiveness_score": 0.8,
		"findings_resolved": {"total": 1, "security": 1, "cost": 0, "reliability": 0},
		"findings_remaining": {"total": 0, "security": 0, "cost": 0, "reliability": 0},
		"risk_reduction": {"before": 0.6, "after": 0.2, "reduction_percentage": 66.7},
		"fix_analysis": [],
		"remaining_issues": [],
		"recommendations": [],
		"confidence_score": 0.9
	}`
	primary := &scriptedClient{texts: []string{effectiveness}, errs: []error{nil}}
	fallback := &scriptedClient{texts: []string{""}, errs: []error{nil}}

	orch := newTestOrchestrator(t, primary, fallback, newMemoryStore())

	finding := domain.Finding{FindingID: "sec-1", Severity: domain.SeverityHigh, Title: "open ingress"}
	got, err := orch.CompareFixEffectiveness(context.Background(),
		"resource \"a\" {}", "resource \"a\" { locked = true }",
		[]domain.Finding{finding}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, got.FixEffectivenessScore, 1e-9)
	assert.Equal(t, 1, got.FindingsResolved.Total)
	assert.Equal(t, "v1.0", got.AnalysisMetadata["prompt_version"])
}
