package adapters

import "database/sql"

// stdResult wraps standard library sql.Result to implement DBResult interface.
type stdResult struct {
	result sql.Result
}

// RowsAffected returns the number of rows affected by the command.
func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

// normalizeBytes turns the []byte that database/sql drivers return for text columns into a string,
// so records scanned through sql.DB and sqlx.DB compare equal to records scanned through pgx.
func normalizeBytes(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return value
}
