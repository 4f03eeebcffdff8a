package config

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"
)

// PostgresSQLDB creates a configured *sql.DB for the test database and closes it when the test ends.
func PostgresSQLDB(t testing.TB) *sql.DB {
	t.Helper()

	const defaultMaxOpenConnections = 10
	const defaultMaxIdleConnections = 2
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", RequirePostgresTestDSN(t))
	require.NoError(t, err, "failed to open database connection")

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	require.NoError(t, db.PingContext(context.Background()), "failed to ping database")
	t.Cleanup(func() { _ = db.Close() })

	return db
}
