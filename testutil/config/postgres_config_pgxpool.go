package config

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// PostgresPGXPool creates a pgxpool.Pool for the test database and closes it when the test ends.
func PostgresPGXPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	const defaultMaxConnections = int32(10)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(RequirePostgresTestDSN(t))
	require.NoError(t, err, "failed to parse pgxpool config")

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	require.NoError(t, err, "failed to create pgxpool")
	t.Cleanup(pool.Close)

	return pool
}
