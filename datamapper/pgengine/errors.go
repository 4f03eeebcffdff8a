package pgengine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrNilDatabaseConnection is returned when a Storage is created without a database connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when a Storage is created for a table without a name.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrEmptyPrimaryKey is returned when a Storage is created for a table without primary key columns.
	ErrEmptyPrimaryKey = errors.New("table primary key must not be empty")

	// ErrBuildingQueryFailed is returned when goqu fails to render a statement.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingRowsFailed is returned when a select or count statement fails.
	ErrQueryingRowsFailed = errors.New("querying rows failed")

	// ErrScanningDBRowFailed is returned when a result row can not be read.
	ErrScanningDBRowFailed = errors.New("scanning db row failed")

	// ErrExecutingStatementFailed is returned when an insert, update or delete statement fails.
	ErrExecutingStatementFailed = errors.New("executing statement failed")

	// ErrGettingRowsAffectedFailed is returned when the affected row count is not available.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

	// ErrRowNotFound is returned when an update or delete did not affect any row.
	ErrRowNotFound = errors.New("row not found")

	// ErrBeginTransactionFailed is returned when a transaction could not be started.
	ErrBeginTransactionFailed = errors.New("beginning transaction failed")

	// ErrCommitFailed is returned when a transaction could not be committed.
	ErrCommitFailed = errors.New("committing transaction failed")
)

// Error types reported in logs and as the error_type metric label.
const (
	ErrorTypeUniqueViolation      = "unique_violation"
	ErrorTypeForeignKeyViolation  = "foreign_key_violation"
	ErrorTypeSerializationFailure = "serialization_failure"
	ErrorTypeDatabase             = "database_error"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
)

// ClassifyError maps a driver error (pgx or lib/pq) to one of the ErrorType constants.
func ClassifyError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}

	return ErrorTypeDatabase
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	return ClassifyError(err) == ErrorTypeUniqueViolation
}

func classifySQLState(code string) string {
	switch code {
	case sqlStateUniqueViolation:
		return ErrorTypeUniqueViolation
	case sqlStateForeignKeyViolation:
		return ErrorTypeForeignKeyViolation
	case sqlStateSerializationFailure:
		return ErrorTypeSerializationFailure
	default:
		return ErrorTypeDatabase
	}
}
