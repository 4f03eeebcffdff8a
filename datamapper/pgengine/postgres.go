package pgengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/pgengine/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	logMsgBuildQueryFailed   = "failed to build query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgBeginTxFailed      = "failed to begin transaction"
	logMsgCommitFailed       = "failed to commit transaction"
	logMsgRollbackFailed     = "failed to roll back transaction"
	logMsgSQLExecuted        = "executed sql for: "
	logAttrError             = "error"
	logAttrErrorType         = "error_type"
	logAttrQuery             = "query"
	logAttrTable             = "table"
	logAttrDurationMS        = "duration_ms"
	actionSelect             = "select"
	actionCount              = "count"
	actionInsert             = "insert"
	actionUpdate             = "update"
	actionDelete             = "delete"
	actionTransaction        = "transaction"
	aliasCount               = "count"
	metricStatementDuration  = "datamapper_sql_duration_seconds"
	metricDatabaseErrors     = "datamapper_sql_errors_total"
	labelTable               = "table"
	labelOperation           = "operation"
	labelErrorType           = "error_type"
)

var _ datamapper.Storage = (*Storage)(nil)

// txKey is the context key of the transaction opened by RunInTransaction.
type txKey struct{}

// Storage is a PostgreSQL implementation of datamapper.Storage for one table.
type Storage struct {
	db               adapters.DBAdapter
	table            Table
	logger           datamapper.Logger
	contextualLogger datamapper.ContextualLogger
	metricsCollector datamapper.MetricsCollector
	isolation        sql.IsolationLevel
}

// NewStorageFromPGXPool creates a new Storage using a pgx Pool.
func NewStorageFromPGXPool(db *pgxpool.Pool, table Table, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStorage(adapters.NewPGXAdapter(db), table, options...)
}

// NewStorageFromPGXPoolWithReplica creates a new Storage that sends queries to the replica pool
// and all writes (and everything inside a transaction) to the primary pool.
func NewStorageFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, table Table, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	if replica == nil {
		return newStorage(adapters.NewPGXAdapter(db), table, options...)
	}

	return newStorage(adapters.NewPGXAdapterWithReplica(db, replica), table, options...)
}

// NewStorageFromSQLDB creates a new Storage using a sql.DB.
func NewStorageFromSQLDB(db *sql.DB, table Table, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStorage(adapters.NewSQLAdapter(db), table, options...)
}

// NewStorageFromSQLX creates a new Storage using a sqlx.DB.
func NewStorageFromSQLX(db *sqlx.DB, table Table, options ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStorage(adapters.NewSQLXAdapter(db), table, options...)
}

func newStorage(db adapters.DBAdapter, table Table, options ...Option) (*Storage, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	s := &Storage{
		db: db,
		table: Table{
			Name:       table.Name,
			PrimaryKey: slices.Clone(table.PrimaryKey),
			Columns:    slices.Clone(table.Columns),
		},
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Table returns the table the Storage serves.
func (s *Storage) Table() Table {
	return s.table
}

// PrimaryKey returns the primary key column names.
func (s *Storage) PrimaryKey() []string {
	return slices.Clone(s.table.PrimaryKey)
}

// NewQuery opens a select over the table. Expressions are compiled with mapper.
func (s *Storage) NewQuery(mapper datamapper.Mapper) datamapper.NativeQuery {
	return newQuery(s, mapper)
}

// Insert stores a row and returns the primary key columns as generated or stored by the database.
func (s *Storage) Insert(ctx context.Context, fields datamapper.Record) (datamapper.Record, error) {
	returning := make([]any, 0, len(s.table.PrimaryKey))
	for _, column := range s.table.PrimaryKey {
		returning = append(returning, goqu.I(column))
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.table.Name).
		Rows(goqu.Record(fields)).
		Returning(returning...)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	records, err := s.queryRecords(ctx, sqlQuery, actionInsert)
	if err != nil {
		return nil, errors.Join(ErrExecutingStatementFailed, err)
	}

	if len(records) == 0 {
		return datamapper.Record{}, nil
	}

	return records[0].Pick(s.table.PrimaryKey...), nil
}

// Update changes fields of the row identified by primary. It fails with ErrRowNotFound when no row matched.
func (s *Storage) Update(ctx context.Context, primary datamapper.Record, fields datamapper.Record) error {
	if len(fields) == 0 {
		return nil
	}

	where, err := s.primaryKeyCondition(primary)
	if err != nil {
		return err
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.table.Name).
		Set(goqu.Record(fields)).
		Where(where)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return s.execExpectingRow(ctx, sqlQuery, actionUpdate)
}

// Delete removes the row identified by primary. It fails with ErrRowNotFound when no row matched.
func (s *Storage) Delete(ctx context.Context, primary datamapper.Record) error {
	where, err := s.primaryKeyCondition(primary)
	if err != nil {
		return err
	}

	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(s.table.Name).
		Where(where)

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return s.execExpectingRow(ctx, sqlQuery, actionDelete)
}

// primaryKeyCondition refuses incomplete keys; an empty WHERE would touch every row.
func (s *Storage) primaryKeyCondition(primary datamapper.Record) (goqu.Ex, error) {
	where := make(goqu.Ex, len(s.table.PrimaryKey))

	for _, column := range s.table.PrimaryKey {
		value, ok := primary[column]
		if !ok || value == nil {
			return nil, fmt.Errorf("%w: missing column %q", datamapper.ErrInvalidPrimaryKey, column)
		}

		where[column] = value
	}

	return where, nil
}

// RunInTransaction executes body inside a database transaction. The transaction travels in the context
// passed to body; when ctx already carries one, body joins it and commit is left to the outer call.
func (s *Storage) RunInTransaction(ctx context.Context, body func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(adapters.DBTx); ok {
		return body(ctx)
	}

	tx, beginErr := s.db.Begin(ctx, s.isolation)
	if beginErr != nil {
		s.logError(ctx, logMsgBeginTxFailed, beginErr)
		s.recordError(actionTransaction, beginErr)

		return errors.Join(ErrBeginTransactionFailed, beginErr)
	}

	if err := body(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		s.logError(ctx, logMsgCommitFailed, commitErr)
		s.recordError(actionTransaction, commitErr)

		return errors.Join(ErrCommitFailed, commitErr)
	}

	return nil
}

// querier returns the transaction carried by ctx, or the connection pool.
func (s *Storage) querier(ctx context.Context) adapters.Querier {
	if tx, ok := ctx.Value(txKey{}).(adapters.DBTx); ok {
		return tx
	}

	return s.db
}

// queryRecords runs a statement returning rows and scans them all.
func (s *Storage) queryRecords(ctx context.Context, sqlQuery string, action string) ([]datamapper.Record, error) {
	start := time.Now()
	rows, queryErr := s.querier(ctx).Query(ctx, sqlQuery)
	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		s.recordError(action, queryErr)

		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	records := make([]datamapper.Record, 0)
	for rows.Next() {
		record, scanErr := rows.ScanRecord()
		if scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}

		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		s.recordError(action, rowsErr)

		return nil, rowsErr
	}

	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)
	s.recordDuration(action, duration)

	return records, nil
}

func (s *Storage) execExpectingRow(ctx context.Context, sqlQuery string, action string) error {
	start := time.Now()
	result, execErr := s.querier(ctx).Exec(ctx, sqlQuery)
	duration := time.Since(start)

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		s.recordError(action, execErr)

		return errors.Join(ErrExecutingStatementFailed, execErr)
	}

	s.logQueryWithDuration(ctx, sqlQuery, action, duration)
	s.recordDuration(action, duration)

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return errors.Join(ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: table %q", ErrRowNotFound, s.table.Name)
	}

	return nil
}

func (s *Storage) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}
