package adapters

import (
	"context"
	"database/sql"
)

// Querier runs SQL statements, either directly on a connection pool or inside a transaction.
type Querier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the storage engine.
type DBAdapter interface {
	Querier
	Begin(ctx context.Context, isolation sql.IsolationLevel) (DBTx, error)
}

// DBTx is an open database transaction.
type DBTx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	ScanRecord() (map[string]any, error)
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
