package memengine

import (
	"context"
	"fmt"
	"slices"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

type orderEntry struct {
	column    string
	direction datamapper.Direction
}

type query struct {
	storage *Storage
	mapper  datamapper.Mapper
	where   datamapper.Expression
	order   []orderEntry
	limit   *uint
	offset  uint
}

// Where validates the expression eagerly, so unsupported negations fail before any row is read.
func (q *query) Where(expression datamapper.Expression) error {
	if err := validate(expression); err != nil {
		return err
	}

	q.where = expression

	return nil
}

func validate(expression datamapper.Expression) error {
	switch e := expression.(type) {
	case datamapper.Conjunction:
		return validateAll(e.Children)
	case datamapper.Disjunction:
		return validateAll(e.Children)
	case datamapper.Comparison:
		_, err := e.Resolve()
		return err
	default:
		return fmt.Errorf("%w: %T", datamapper.ErrUnsupportedExpression, expression)
	}
}

func validateAll(children []datamapper.Expression) error {
	for _, child := range children {
		if err := validate(child); err != nil {
			return err
		}
	}

	return nil
}

func (q *query) OrderBy(column string, direction datamapper.Direction) error {
	if !q.storage.hasColumn(column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	q.order = append(q.order, orderEntry{column: column, direction: direction})

	return nil
}

// Include is a no-op; rows always carry all of their columns.
func (q *query) Include(string) {}

func (q *query) SetLimit(limit uint) {
	q.limit = &limit
}

func (q *query) SetOffset(offset uint) {
	q.offset = offset
}

func (q *query) FetchOne(ctx context.Context) (datamapper.Record, bool, error) {
	one := uint(1)
	if q.limit != nil && *q.limit == 0 {
		one = 0
	}

	limited := *q
	limited.limit = &one

	rows, err := limited.FetchAll(ctx)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}

	return rows[0], true, nil
}

func (q *query) FetchAll(_ context.Context) ([]datamapper.Record, error) {
	rows, err := q.matching()
	if err != nil {
		return nil, err
	}

	if err = q.sort(rows); err != nil {
		return nil, err
	}

	start := min(int(q.offset), len(rows))
	rows = rows[start:]

	if q.limit != nil && int(*q.limit) < len(rows) {
		rows = rows[:*q.limit]
	}

	return rows, nil
}

func (q *query) Count(_ context.Context) (int64, error) {
	rows, err := q.matching()
	if err != nil {
		return 0, err
	}

	return int64(len(rows)), nil
}

func (q *query) matching() ([]datamapper.Record, error) {
	rows := q.storage.Rows()

	if q.where == nil {
		return rows, nil
	}

	matched := make([]datamapper.Record, 0, len(rows))
	for _, row := range rows {
		ok, err := datamapper.Evaluate(q.where, q.mapper, row)
		if err != nil {
			return nil, err
		}

		if ok {
			matched = append(matched, row)
		}
	}

	return matched, nil
}

func (q *query) sort(rows []datamapper.Record) error {
	var sortErr error

	slices.SortStableFunc(rows, func(a, b datamapper.Record) int {
		for _, entry := range q.order {
			cmp, err := datamapper.CompareValues(a[entry.column], b[entry.column])
			if err != nil {
				sortErr = err
				return 0
			}

			if cmp != 0 {
				if entry.direction == datamapper.Descending {
					return -cmp
				}

				return cmp
			}
		}

		return 0
	})

	return sortErr
}
