package pgengine

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

const (
	defaultRetryMaxAttempts  = 5
	defaultRetryBaseDelay    = 10 * time.Millisecond
	defaultRetryJitterFactor = 0.3
	metricRetries            = "datamapper_sql_retries_total"
	metricRetriesExhausted   = "datamapper_sql_retries_exhausted_total"
	labelAttempt             = "attempt"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector datamapper.MetricsCollector
}

// RetryOption configures RetryOnSerializationFailure.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets how often fn runs at most, the first run included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(c *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the first retry; it doubles with every further retry.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the random share added on top of each delay.
func WithJitterFactor(factor float64) RetryOption {
	return func(c *retryConfig) error {
		if factor < 0 || factor > 1 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics counts retries and exhausted retries.
func WithRetryMetrics(collector datamapper.MetricsCollector) RetryOption {
	return func(c *retryConfig) error {
		c.metricsCollector = collector
		return nil
	}
}

// RetryOnSerializationFailure runs fn and reruns it with exponential backoff while it fails with
// a PostgreSQL serialization failure (SQLSTATE 40001). Every other error is returned at once.
//
// fn should open its own unit of work, typically a fresh datamapper.Session and a
// Storage.RunInTransaction, since the entities loaded by a failed attempt are stale.
func RetryOnSerializationFailure(ctx context.Context, fn func(ctx context.Context) error, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultRetryMaxAttempts,
		baseDelay:    defaultRetryBaseDelay,
		jitterFactor: defaultRetryJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Float64() * float64(delay) * config.jitterFactor) //nolint:gosec // jitter only

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if ClassifyError(lastErr) != ErrorTypeSerializationFailure {
			return lastErr
		}

		if attempt < config.maxAttempts-1 {
			config.count(metricRetries, map[string]string{labelAttempt: strconv.Itoa(attempt + 1)})
		}
	}

	config.count(metricRetriesExhausted, nil)

	return lastErr
}

func (c *retryConfig) count(metric string, labels map[string]string) {
	if c.metricsCollector != nil {
		c.metricsCollector.IncrementCounter(metric, labels)
	}
}
