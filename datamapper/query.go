package datamapper

import (
	"context"
	"errors"
)

// Query is a thin stateful builder around one NativeQuery.
// It applies Criteria to the native query, executes it, and materializes the resulting records
// through the Session so that identity is preserved.
type Query struct {
	native  NativeQuery
	session *Session
	role    string
}

func newQuery(native NativeQuery, session *Session, role string) *Query {
	return &Query{
		native:  native,
		session: session,
		role:    role,
	}
}

// Matching applies the criteria: the expression is compiled into the native filter, order entries are
// translated to storage names, pagination is delegated to the criteria's Paginator (or explicit
// offset/limit are applied), and include fields are added to the selection.
func (q *Query) Matching(criteria Criteria) error {
	mapper, err := q.session.Mapper(q.role)
	if err != nil {
		return err
	}

	if expression := criteria.Expression(); expression != nil {
		if err = q.native.Where(expression); err != nil {
			if errors.Is(err, ErrUnsupportedExpression) {
				return err
			}

			return errors.Join(ErrUnsupportedExpression, err)
		}
	}

	for _, entry := range criteria.Orderings() {
		if err = q.native.OrderBy(mapper.NameToStorage(entry.Field), entry.Direction); err != nil {
			if errors.Is(err, ErrInvalidOrderField) {
				return err
			}

			return errors.Join(ErrInvalidOrderField, err)
		}
	}

	if paginator := criteria.Paginator(); paginator != nil {
		paginator.Paginate(q)
	} else {
		if offset := criteria.Offset(); offset > 0 {
			q.Offset(offset)
		}

		if limit, ok := criteria.Limit(); ok {
			q.Limit(limit)
		}
	}

	for _, field := range criteria.Includes() {
		q.native.Include(mapper.NameToStorage(field))
	}

	return nil
}

// Limit sets the maximum number of fetched records.
func (q *Query) Limit(limit uint) {
	q.native.SetLimit(limit)
}

// Offset sets the number of records to skip.
func (q *Query) Offset(offset uint) {
	q.native.SetOffset(offset)
}

// FetchOne returns the first matching entity; false when no row matches.
func (q *Query) FetchOne(ctx context.Context) (Entity, bool, error) {
	record, found, err := q.native.FetchOne(ctx)
	if err != nil {
		return nil, false, errors.Join(ErrQueryFailed, err)
	}

	if !found {
		return nil, false, nil
	}

	entity, err := q.session.Materialize(q.role, record)
	if err != nil {
		return nil, false, err
	}

	return entity, true, nil
}

// FetchAll returns all matching entities in the order the engine returned them.
func (q *Query) FetchAll(ctx context.Context) ([]Entity, error) {
	records, err := q.native.FetchAll(ctx)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}

	entities := make([]Entity, 0, len(records))
	for _, record := range records {
		entity, materializeErr := q.session.Materialize(q.role, record)
		if materializeErr != nil {
			return nil, materializeErr
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// Count returns the number of matching rows, ignoring limit, offset and ordering.
func (q *Query) Count(ctx context.Context) (int64, error) {
	count, err := q.native.Count(ctx)
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}

	return count, nil
}
