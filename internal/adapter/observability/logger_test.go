package observability_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bkeller/terrarisk/internal/adapter/observability"
)

func newObservedLogger() (*observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return observability.NewLogger(zap.New(core)), logs
}

func TestAuditEventFields(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Audit("review", "rev-1", "created", zap.String("run_id", "run-9"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, logger.TraceID(), fields["trace_id"])
	assert.Equal(t, "review", fields["event_type"])
	assert.Equal(t, "rev-1", fields["resource"])
	assert.Equal(t, "created", fields["action"])
	assert.Equal(t, "run-9", fields["run_id"])
}

func TestPerformanceEventFields(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Performance("review_source", 150*time.Millisecond)

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "review_source", fields["operation"])
	assert.Equal(t, 150*time.Millisecond, fields["elapsed"])
}

func TestWithTraceIssuesNewID(t *testing.T) {
	logger, _ := newObservedLogger()

	child := logger.WithTrace()
	assert.NotEmpty(t, child.TraceID())
	assert.NotEqual(t, logger.TraceID(), child.TraceID())
}

func TestZapCarriesTraceID(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Zap().Info("plain event")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, logger.TraceID(), entries[0].ContextMap()["trace_id"])
}

func TestNilZapLoggerDefaultsToNop(t *testing.T) {
	logger := observability.NewLogger(nil)
	assert.NotPanics(t, func() {
		logger.Audit("review", "rev-1", "created")
	})
}
