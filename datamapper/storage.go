package datamapper

import (
	"context"
)

// Storage is the storage engine collaborator for one role.
// Records passed in and out are in the storage vocabulary.
type Storage interface {
	// PrimaryKey returns the storage names of the primary key fields, in key order.
	PrimaryKey() []string

	// NewQuery opens an engine-native query selecting all fields of the role.
	NewQuery(mapper Mapper) NativeQuery

	// Insert stores a new row and returns the generated primary key values.
	Insert(ctx context.Context, fields Record) (Record, error)

	// Update changes the given fields of the row identified by primary.
	Update(ctx context.Context, primary Record, fields Record) error

	// Delete removes the row identified by primary.
	Delete(ctx context.Context, primary Record) error

	// RunInTransaction executes body exactly once inside one atomic scope.
	// When body fails, the scope is rolled back and body's error is returned.
	RunInTransaction(ctx context.Context, body func(ctx context.Context) error) error
}

// NativeQuery is one engine-specific query. Field names are in the storage vocabulary,
// expressions in the domain vocabulary (the engine compiles them with the query's Mapper).
type NativeQuery interface {
	Where(expression Expression) error
	OrderBy(field string, direction Direction) error
	Include(field string)
	SetLimit(limit uint)
	SetOffset(offset uint)

	// FetchOne returns the first matching record; false when there is none.
	FetchOne(ctx context.Context) (Record, bool, error)
	FetchAll(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int64, error)
}
