package config

import (
	"os"
	"testing"
)

// EnvTestDSN names the environment variable holding the test database DSN.
const EnvTestDSN = "DATAMAPPER_TEST_DSN"

// PostgresTestDSN returns the DSN for the test database and whether one is configured.
func PostgresTestDSN() (string, bool) {
	dsn := os.Getenv(EnvTestDSN)

	return dsn, dsn != ""
}

// RequirePostgresTestDSN skips the test when no test database is configured.
func RequirePostgresTestDSN(t testing.TB) string {
	t.Helper()

	dsn, ok := PostgresTestDSN()
	if !ok {
		t.Skipf("%s is not set, skipping PostgreSQL integration test", EnvTestDSN)
	}

	return dsn
}
