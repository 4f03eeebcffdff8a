package pgengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

// query is the goqu-backed datamapper.NativeQuery of a Storage.
type query struct {
	storage  *Storage
	compiler Compiler
	dataset  *goqu.SelectDataset
	limit    *uint
}

func newQuery(storage *Storage, mapper datamapper.Mapper) *query {
	dataset := goqu.Dialect(dialectPostgres).From(storage.table.Name)

	if len(storage.table.Columns) > 0 {
		columns := make([]any, 0, len(storage.table.Columns))
		for _, column := range storage.table.Columns {
			columns = append(columns, goqu.C(column))
		}

		dataset = dataset.Select(columns...)
	} else {
		dataset = dataset.Select(goqu.Star())
	}

	return &query{
		storage:  storage,
		compiler: NewCompiler(mapper),
		dataset:  dataset,
	}
}

// Where compiles expression and ANDs it to the filter.
func (q *query) Where(expression datamapper.Expression) error {
	condition, err := q.compiler.Condition(expression)
	if err != nil {
		return err
	}

	q.dataset = q.dataset.Where(condition)

	return nil
}

// OrderBy appends an order column. Undeclared columns fail with datamapper.ErrInvalidOrderField.
func (q *query) OrderBy(column string, direction datamapper.Direction) error {
	if !q.storage.table.hasColumn(column) {
		return fmt.Errorf("%w: table %q has no column %q", datamapper.ErrInvalidOrderField, q.storage.table.Name, column)
	}

	if direction == datamapper.Descending {
		q.dataset = q.dataset.OrderAppend(goqu.C(column).Desc())
	} else {
		q.dataset = q.dataset.OrderAppend(goqu.C(column).Asc())
	}

	return nil
}

// Include adds a column to the selection unless it is selected already.
func (q *query) Include(column string) {
	if len(q.storage.table.Columns) == 0 || q.storage.table.hasColumn(column) {
		return
	}

	q.dataset = q.dataset.SelectAppend(goqu.C(column))
}

// SetLimit limits the fetched rows. goqu treats LIMIT 0 as no limit, so a zero limit is kept
// here and short-circuits the fetch.
func (q *query) SetLimit(limit uint) {
	q.limit = &limit
	q.dataset = q.dataset.Limit(limit)
}

func (q *query) SetOffset(offset uint) {
	q.dataset = q.dataset.Offset(offset)
}

// ToSQL renders the select statement.
func (q *query) ToSQL() (string, error) {
	sqlQuery, _, err := q.dataset.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func (q *query) FetchOne(ctx context.Context) (datamapper.Record, bool, error) {
	if q.limit != nil && *q.limit == 0 {
		return nil, false, nil
	}

	one := *q
	one.dataset = q.dataset.Limit(1)

	records, err := one.FetchAll(ctx)
	if err != nil || len(records) == 0 {
		return nil, false, err
	}

	return records[0], true, nil
}

func (q *query) FetchAll(ctx context.Context) ([]datamapper.Record, error) {
	if q.limit != nil && *q.limit == 0 {
		return []datamapper.Record{}, nil
	}

	sqlQuery, err := q.ToSQL()
	if err != nil {
		q.storage.logError(ctx, logMsgBuildQueryFailed, err)
		return nil, err
	}

	records, err := q.storage.queryRecords(ctx, sqlQuery, actionSelect)
	if err != nil {
		return nil, errors.Join(ErrQueryingRowsFailed, err)
	}

	return records, nil
}

// Count runs SELECT COUNT(*) over the filter, without ordering, limit and offset.
func (q *query) Count(ctx context.Context) (int64, error) {
	countStmt := q.dataset.
		ClearOrder().
		ClearLimit().
		ClearOffset().
		Select(goqu.COUNT(goqu.Star()).As(aliasCount))

	sqlQuery, _, toSQLErr := countStmt.ToSQL()
	if toSQLErr != nil {
		q.storage.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return 0, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	records, err := q.storage.queryRecords(ctx, sqlQuery, actionCount)
	if err != nil {
		return 0, errors.Join(ErrQueryingRowsFailed, err)
	}

	if len(records) == 0 {
		return 0, nil
	}

	return toInt64(records[0][aliasCount])
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return 0, errors.Join(ErrScanningDBRowFailed, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("%w: unexpected count type %T", ErrScanningDBRowFailed, value)
	}
}
