package datamapper

import (
	"context"
	"time"
)

// Logger interface for operational logging, warnings, and error reporting.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface is dependency-free, allowing users to integrate with any logging backend
// that supports context-based correlation. *slog.Logger satisfies it.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting repository and engine performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for exemplar and trace correlation.
// It is optional: a Repository uses the context-aware methods when its collector implements them.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from repository operations.
// Like MetricsCollector it is dependency-free; the oteladapters module implements it with OpenTelemetry.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	// MetricOperationDuration records the duration of repository operations in seconds.
	MetricOperationDuration = "datamapper_operation_duration_seconds"

	// MetricOperationErrors counts failed repository operations.
	MetricOperationErrors = "datamapper_operation_errors_total"

	// MetricIdentityMapHits counts lookups answered by the session without hitting storage.
	MetricIdentityMapHits = "datamapper_identity_map_hits_total"

	// LabelOperation is the metric label carrying the operation name.
	LabelOperation = "operation"

	// LabelStatus is the metric label carrying success or error.
	LabelStatus = "status"

	// LabelRole is the metric label carrying the role name.
	LabelRole = "role"

	StatusSuccess = "success"
	StatusError   = "error"

	// SpanNamePrefix prefixes the span name of every repository operation, e.g. "datamapper.save".
	SpanNamePrefix = "datamapper."
)
