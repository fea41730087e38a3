// Package observability provides structured audit and performance logging
// on top of zap.
package observability

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger wraps a zap logger with audit and performance event helpers. Every
// Logger carries a trace id so events from one operation can be correlated.
type Logger struct {
	zl      *zap.Logger
	traceID string
}

// NewLogger wraps a zap logger with a fresh trace id.
func NewLogger(zl *zap.Logger) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl, traceID: uuid.NewString()}
}

// WithTrace returns a Logger sharing the underlying zap logger but carrying
// a new trace id, for a new top-level operation.
func (l *Logger) WithTrace() *Logger {
	return &Logger{zl: l.zl, traceID: uuid.NewString()}
}

// TraceID returns the trace id attached to every event from this logger.
func (l *Logger) TraceID() string {
	return l.traceID
}

// Zap exposes the underlying zap logger for plain structured logging.
func (l *Logger) Zap() *zap.Logger {
	return l.zl.With(zap.String("trace_id", l.traceID))
}

// Audit records a security-relevant event: who did what to which resource.
func (l *Logger) Audit(eventType, resource, action string, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("trace_id", l.traceID),
		zap.String("event_type", eventType),
		zap.String("resource", resource),
		zap.String("action", action),
	}, fields...)
	l.zl.Info("audit", all...)
}

// Performance records how long an operation took.
func (l *Logger) Performance(operation string, elapsed time.Duration, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("trace_id", l.traceID),
		zap.String("operation", operation),
		zap.Duration("elapsed", elapsed),
	}, fields...)
	l.zl.Info("performance", all...)
}
