// Package config provides database connections for the integration tests.
//
// Integration tests need a reachable PostgreSQL instance. Its DSN is read from the DATAMAPPER_TEST_DSN
// environment variable; when the variable is unset the tests skip themselves.
package config
