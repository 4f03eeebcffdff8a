// Package pgengine provides a PostgreSQL storage engine for datamapper repositories.
//
// A Storage serves exactly one table. It renders every statement with goqu (postgres dialect,
// interpolated values), runs it through one of the supported connection types, and returns rows as
// datamapper.Record values keyed by column name.
//
// Supported connection types:
//   - *pgxpool.Pool (recommended for new projects)
//   - *sql.DB with the lib/pq driver
//   - *sqlx.DB
//
// Criteria expressions are compiled by a Compiler into nested goqu expression lists, so arbitrarily
// deep AND/OR trees keep their grouping in the generated WHERE clause.
//
// Transactions are carried in the context: RunInTransaction begins one on the first call and every
// Insert, Update, Delete and query issued with the derived context joins it. Nested calls run inside
// the outer transaction. WithTransactionIsolation raises the isolation level, and
// RetryOnSerializationFailure reruns a unit of work that lost a serialization conflict.
//
// Example:
//
//	storage, err := pgengine.NewStorageFromPGXPool(pool, pgengine.Table{
//		Name:       "orders",
//		PrimaryKey: []string{"id"},
//		Columns:    []string{"id", "external_ref", "total", "status", "created_at"},
//	}, pgengine.WithLogger(logger))
package pgengine
