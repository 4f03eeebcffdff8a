package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// TestLogHandler is a slog.Handler implementation that captures log records for testing.
type TestLogHandler struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewTestLogHandler creates a new TestLogHandler
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewTestLogHandler(logToStdOut bool) *TestLogHandler {
	return &TestLogHandler{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// NewTestLogger returns a slog.Logger writing into a new TestLogHandler.
func NewTestLogger() (*slog.Logger, *TestLogHandler) {
	handler := NewTestLogHandler(false)

	return slog.New(handler), handler
}

// Handle implements slog.Handler interface.
func (h *TestLogHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)

	if h.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (h *TestLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true // Always enabled for testing
}

// WithAttrs implements slog.Handler interface.
func (h *TestLogHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

// WithGroup implements slog.Handler interface.
func (h *TestLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

// GetRecordCount returns the number of captured log records.
func (h *TestLogHandler) GetRecordCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.records)
}

// Reset clears all captured log records.
func (h *TestLogHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = h.records[:0]
}

// HasLog checks if there's a log record with the given level and message.
func (h *TestLogHandler) HasLog(level slog.Level, message string) bool {
	return h.HasLogWithMessage(level, message).Assert()
}

// LogRecordMatcher provides a fluent interface for checking log record attributes.
type LogRecordMatcher struct {
	record *slog.Record
	found  bool
}

// HasLogWithMessage starts a fluent chain to check a log record of the given level.
func (h *TestLogHandler) HasLogWithMessage(level slog.Level, message string) *LogRecordMatcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, record := range h.records {
		if record.Level == level && record.Message == message {
			return &LogRecordMatcher{record: &record, found: true}
		}
	}

	return &LogRecordMatcher{found: false}
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (h *TestLogHandler) HasDebugLogWithMessage(message string) *LogRecordMatcher {
	return h.HasLogWithMessage(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (h *TestLogHandler) HasInfoLogWithMessage(message string) *LogRecordMatcher {
	return h.HasLogWithMessage(slog.LevelInfo, message)
}

// HasWarnLogWithMessage starts a fluent chain to check a warn-level log record.
func (h *TestLogHandler) HasWarnLogWithMessage(message string) *LogRecordMatcher {
	return h.HasLogWithMessage(slog.LevelWarn, message)
}

// HasErrorLogWithMessage starts a fluent chain to check an error-level log record.
func (h *TestLogHandler) HasErrorLogWithMessage(message string) *LogRecordMatcher {
	return h.HasLogWithMessage(slog.LevelError, message)
}

// WithDurationMS checks if the log record has a duration_ms attribute with a non-negative value.
func (m *LogRecordMatcher) WithDurationMS() *LogRecordMatcher {
	if !m.found {
		return m
	}

	hasDurationMS := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "duration_ms" {
			switch attr.Value.Kind() {
			case slog.KindInt64:
				hasDurationMS = attr.Value.Int64() >= 0
			case slog.KindFloat64:
				hasDurationMS = attr.Value.Float64() >= 0
			default:
				// Other types are not supported for duration
			}

			return false
		}

		return true
	})

	m.found = hasDurationMS

	return m
}

// WithAttribute checks if the log record carries the attribute key with the given string value.
func (m *LogRecordMatcher) WithAttribute(key, value string) *LogRecordMatcher {
	if !m.found {
		return m
	}

	hasAttribute := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key && attr.Value.String() == value {
			hasAttribute = true
			return false // Stop iteration
		}

		return true // Continue iteration
	})

	m.found = hasAttribute

	return m
}

// Assert returns whether all conditions in the chain were satisfied.
func (m *LogRecordMatcher) Assert() bool {
	return m.found
}
