// Package adapters provide database adapter implementations for the PostgreSQL storage engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the storage engine to work seamlessly with any
// supported database connection type.
//
// The adapters handle the specifics of each database library (transactions, scanning rows into
// column-name keyed records) while presenting a unified interface.
package adapters
