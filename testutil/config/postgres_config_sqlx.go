package config

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"
)

// PostgresSQLX creates a configured *sqlx.DB for the test database and closes it when the test ends.
func PostgresSQLX(t testing.TB) *sqlx.DB {
	t.Helper()

	const defaultMaxOpenConnections = 10
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", RequirePostgresTestDSN(t))
	require.NoError(t, err, "failed to open database connection")

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	require.NoError(t, db.PingContext(context.Background()), "failed to ping database")
	t.Cleanup(func() { _ = db.Close() })

	return db
}
