// Package helper provides test doubles and fixtures shared by the package tests.
//
// TestLogHandler captures slog records and MetricsCollectorSpy captures metrics calls.
// TracingCollectorSpy and ContextualLoggerSpy record spans and contextual log calls, and StorageSpy
// wraps any datamapper.Storage to count storage round trips and inject failures.
package helper
