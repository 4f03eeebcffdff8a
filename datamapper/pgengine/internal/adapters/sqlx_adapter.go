package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query executes a query using the sqlx.DB and returns wrapped rows.
func (s *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlxRows{rows: rows}, nil
}

// Exec executes a query using the sqlx.DB and returns wrapped result.
func (s *SQLXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdResult{result: result}, nil
}

// Begin starts a transaction using sqlx.DB.
func (s *SQLXAdapter) Begin(ctx context.Context, isolation sql.IsolationLevel) (DBTx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return nil, err
	}
	return &sqlxTx{tx: tx}, nil
}

type sqlxTx struct {
	tx *sqlx.Tx
}

func (t *sqlxTx) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := t.tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlxRows{rows: rows}, nil
}

func (t *sqlxTx) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := t.tx.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdResult{result: result}, nil
}

func (t *sqlxTx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *sqlxTx) Rollback(_ context.Context) error {
	return t.tx.Rollback()
}

// sqlxRows wraps sqlx.Rows and scans with MapScan.
type sqlxRows struct {
	rows *sqlx.Rows
}

func (s *sqlxRows) Next() bool {
	return s.rows.Next()
}

func (s *sqlxRows) ScanRecord() (map[string]any, error) {
	record := make(map[string]any)
	if err := s.rows.MapScan(record); err != nil {
		return nil, err
	}

	for column, value := range record {
		record[column] = normalizeBytes(value)
	}

	return record, nil
}

func (s *sqlxRows) Err() error {
	return s.rows.Err()
}

func (s *sqlxRows) Close() error {
	return s.rows.Close()
}
