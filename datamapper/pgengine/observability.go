package pgengine

import (
	"context"
	"math"
	"time"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (s *Storage) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	args := []any{logAttrTable, s.table.Name, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

func (s *Storage) logWarn(ctx context.Context, message string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level, tagged with the classified error type.
func (s *Storage) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrTable, s.table.Name, logAttrError, err.Error(), logAttrErrorType, ClassifyError(err)}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}
}

func (s *Storage) recordDuration(action string, duration time.Duration) {
	if s.metricsCollector != nil {
		s.metricsCollector.RecordDuration(metricStatementDuration, duration, map[string]string{
			labelOperation: action,
			labelTable:     s.table.Name,
		})
	}
}

func (s *Storage) recordError(action string, err error) {
	if s.metricsCollector != nil {
		s.metricsCollector.IncrementCounter(metricDatabaseErrors, map[string]string{
			labelOperation: action,
			labelTable:     s.table.Name,
			labelErrorType: ClassifyError(err),
		})
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
