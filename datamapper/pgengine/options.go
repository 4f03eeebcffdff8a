package pgengine

import (
	"database/sql"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

// Option defines a functional option for configuring a Storage.
type Option func(*Storage) error

// WithLogger sets the logger for the Storage.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Warn level: Non-critical issues like failed rollbacks or row cleanup
// Error level: Critical failures that cause operation failures.
func WithLogger(logger datamapper.Logger) Option {
	return func(s *Storage) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Storage.
// When set, it takes precedence over the plain logger so log records carry the caller's context.
func WithContextualLogger(logger datamapper.ContextualLogger) Option {
	return func(s *Storage) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Storage.
// It receives statement durations and database error counters labeled by error type.
func WithMetrics(collector datamapper.MetricsCollector) Option {
	return func(s *Storage) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTransactionIsolation sets the isolation level of transactions opened by RunInTransaction.
// Under sql.LevelRepeatableRead or sql.LevelSerializable concurrent writers fail with a serialization
// failure, see RetryOnSerializationFailure.
func WithTransactionIsolation(isolation sql.IsolationLevel) Option {
	return func(s *Storage) error {
		s.isolation = isolation
		return nil
	}
}
