package memengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

var (
	// ErrEmptyPrimaryKey is returned when a storage is created without primary key fields.
	ErrEmptyPrimaryKey = errors.New("primary key must not be empty")

	// ErrDuplicateKey is returned when an insert would duplicate an existing primary key.
	ErrDuplicateKey = errors.New("duplicate primary key")

	// ErrRowNotFound is returned when an update or delete does not match any row.
	ErrRowNotFound = errors.New("no row matches the primary key")

	// ErrUnknownColumn is returned when a query orders by a column the storage does not declare.
	ErrUnknownColumn = errors.New("unknown column")
)

// Storage keeps the rows of one role in memory.
type Storage struct {
	primaryKey    []string
	columns       []string
	autoIncrement string
	nextID        int64
	rows          []datamapper.Record
	mu            sync.Mutex
}

// Option defines a functional option for configuring a Storage.
type Option func(*Storage) error

// WithColumns declares the known columns. Ordering by any other column then fails.
func WithColumns(columns ...string) Option {
	return func(s *Storage) error {
		s.columns = columns
		return nil
	}
}

// WithAutoIncrement generates int64 values for field when an insert does not provide one.
func WithAutoIncrement(field string) Option {
	return func(s *Storage) error {
		s.autoIncrement = field
		return nil
	}
}

// WithRows seeds the storage with rows.
func WithRows(rows ...datamapper.Record) Option {
	return func(s *Storage) error {
		for _, row := range rows {
			s.rows = append(s.rows, row.Clone())
			s.bumpSequence(row)
		}

		return nil
	}
}

// NewStorage creates an empty Storage with the given primary key fields.
func NewStorage(primaryKey []string, options ...Option) (*Storage, error) {
	if len(primaryKey) == 0 {
		return nil, ErrEmptyPrimaryKey
	}

	s := &Storage{primaryKey: slices.Clone(primaryKey)}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// PrimaryKey returns the primary key fields.
func (s *Storage) PrimaryKey() []string {
	return slices.Clone(s.primaryKey)
}

// NewQuery opens a query over all rows.
func (s *Storage) NewQuery(mapper datamapper.Mapper) datamapper.NativeQuery {
	return &query{storage: s, mapper: mapper}
}

// Rows returns a copy of all rows in insertion order.
func (s *Storage) Rows() []datamapper.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneRows(s.rows)
}

// Insert stores a new row and returns its primary key values.
func (s *Storage) Insert(_ context.Context, fields datamapper.Record) (datamapper.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := fields.Clone()

	if s.autoIncrement != "" {
		if val, ok := row[s.autoIncrement]; !ok || val == nil {
			s.nextID++
			row[s.autoIncrement] = s.nextID
		}
	}

	primary := row.Pick(s.primaryKey...)
	if len(primary) != len(s.primaryKey) {
		return nil, fmt.Errorf("%w: insert lacks primary key fields", ErrEmptyPrimaryKey)
	}

	if s.indexOf(primary) >= 0 {
		return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, primary)
	}

	s.rows = append(s.rows, row)
	s.bumpSequence(row)

	return primary, nil
}

// Update changes fields of the row identified by primary.
func (s *Storage) Update(_ context.Context, primary datamapper.Record, fields datamapper.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(primary)
	if i < 0 {
		return fmt.Errorf("%w: %v", ErrRowNotFound, primary)
	}

	s.rows[i] = s.rows[i].Merge(fields)

	return nil
}

// Delete removes the row identified by primary.
func (s *Storage) Delete(_ context.Context, primary datamapper.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(primary)
	if i < 0 {
		return fmt.Errorf("%w: %v", ErrRowNotFound, primary)
	}

	s.rows = slices.Delete(s.rows, i, i+1)

	return nil
}

type txKey struct{}

// RunInTransaction runs body once. When body fails, all rows are restored to their state before the call.
// Nested calls join the outer transaction.
func (s *Storage) RunInTransaction(ctx context.Context, body func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return body(ctx)
	}

	s.mu.Lock()
	saved := cloneRows(s.rows)
	savedID := s.nextID
	s.mu.Unlock()

	if err := body(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.mu.Lock()
		s.rows = saved
		s.nextID = savedID
		s.mu.Unlock()

		return err
	}

	return nil
}

// indexOf returns the position of the row matching primary, or -1. The caller holds the lock.
func (s *Storage) indexOf(primary datamapper.Record) int {
	return slices.IndexFunc(s.rows, func(row datamapper.Record) bool {
		for _, field := range s.primaryKey {
			if !datamapper.ValuesEqual(row[field], primary[field]) {
				return false
			}
		}

		return true
	})
}

func (s *Storage) bumpSequence(row datamapper.Record) {
	if s.autoIncrement == "" {
		return
	}

	switch id := row[s.autoIncrement].(type) {
	case int64:
		s.nextID = max(s.nextID, id)
	case int:
		s.nextID = max(s.nextID, int64(id))
	}
}

func (s *Storage) hasColumn(column string) bool {
	return len(s.columns) == 0 || slices.Contains(s.columns, column)
}

func cloneRows(rows []datamapper.Record) []datamapper.Record {
	clones := make([]datamapper.Record, 0, len(rows))
	for _, row := range rows {
		clones = append(clones, row.Clone())
	}

	return clones
}
