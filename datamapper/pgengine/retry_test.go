package pgengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper/pgengine"
	"github.com/AntonStoeckl/datamapper-go/testutil/helper"
)

func serializationFailure() error {
	return errors.Join(pgengine.ErrExecutingStatementFailed, &pgconn.PgError{Code: "40001"})
}

func Test_RetryOnSerializationFailure_When_FnSucceedsAfterConflicts(t *testing.T) {
	// arrange
	metrics := helper.NewMetricsCollectorSpy()
	calls := 0
	fn := func(context.Context) error {
		calls++
		if calls < 3 {
			return serializationFailure()
		}

		return nil
	}

	// act
	err := pgengine.RetryOnSerializationFailure(
		context.Background(),
		fn,
		pgengine.WithBaseDelay(time.Millisecond),
		pgengine.WithRetryMetrics(metrics),
	)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, metrics.HasCounterRecord("datamapper_sql_retries_total", map[string]string{"attempt": "2"}))
}

func Test_RetryOnSerializationFailure_When_ErrorIsPermanent_FailsFast(t *testing.T) {
	// arrange
	calls := 0
	permanent := &pgconn.PgError{Code: "23505"}

	// act
	err := pgengine.RetryOnSerializationFailure(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	// assert
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func Test_RetryOnSerializationFailure_When_AttemptsAreExhausted(t *testing.T) {
	// arrange
	metrics := helper.NewMetricsCollectorSpy()
	calls := 0

	// act
	err := pgengine.RetryOnSerializationFailure(
		context.Background(),
		func(context.Context) error {
			calls++
			return serializationFailure()
		},
		pgengine.WithMaxAttempts(3),
		pgengine.WithBaseDelay(0),
		pgengine.WithRetryMetrics(metrics),
	)

	// assert
	assert.ErrorIs(t, err, pgengine.ErrExecutingStatementFailed)
	assert.Equal(t, 3, calls)
	assert.True(t, metrics.HasCounterRecord("datamapper_sql_retries_exhausted_total", nil))
}

func Test_RetryOnSerializationFailure_When_ContextIsCanceledDuringBackoff(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	// act
	err := pgengine.RetryOnSerializationFailure(ctx, func(context.Context) error {
		calls++
		cancel()
		return serializationFailure()
	}, pgengine.WithBaseDelay(time.Hour))

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func Test_RetryOnSerializationFailure_RejectsInvalidOptions(t *testing.T) {
	testCases := []struct {
		name        string
		option      pgengine.RetryOption
		expectedErr error
	}{
		{name: "zero attempts", option: pgengine.WithMaxAttempts(0), expectedErr: pgengine.ErrInvalidMaxAttempts},
		{name: "negative delay", option: pgengine.WithBaseDelay(-time.Millisecond), expectedErr: pgengine.ErrNegativeBaseDelay},
		{name: "jitter above one", option: pgengine.WithJitterFactor(1.5), expectedErr: pgengine.ErrInvalidJitterFactor},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := pgengine.RetryOnSerializationFailure(context.Background(), func(context.Context) error {
				return nil
			}, tc.option)

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}
