package helper

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

// StorageSpy wraps a datamapper.Storage, counts the calls reaching it and can inject failures.
type StorageSpy struct {
	inner datamapper.Storage

	mu           sync.Mutex
	inserts      int
	updates      int
	deletes      int
	fetches      int
	transactions int
	lastUpdate   datamapper.Record
	failInsert   error
	failUpdate   error
	failDelete   error
}

// NewStorageSpy wraps inner.
func NewStorageSpy(inner datamapper.Storage) *StorageSpy {
	return &StorageSpy{inner: inner}
}

// FailInsertWith makes every following Insert fail with err; nil restores normal operation.
func (s *StorageSpy) FailInsertWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInsert = err
}

// FailUpdateWith makes every following Update fail with err; nil restores normal operation.
func (s *StorageSpy) FailUpdateWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate = err
}

// FailDeleteWith makes every following Delete fail with err; nil restores normal operation.
func (s *StorageSpy) FailDeleteWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = err
}

// Inserts returns the number of Insert calls.
func (s *StorageSpy) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// Updates returns the number of Update calls.
func (s *StorageSpy) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Deletes returns the number of Delete calls.
func (s *StorageSpy) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// Fetches returns the number of FetchOne, FetchAll and Count calls on queries opened through the spy.
func (s *StorageSpy) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Transactions returns the number of RunInTransaction calls.
func (s *StorageSpy) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions
}

// LastUpdate returns the fields passed to the most recent Update.
func (s *StorageSpy) LastUpdate() datamapper.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate.Clone()
}

// StorageCalls returns the total number of storage round trips.
func (s *StorageSpy) StorageCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts + s.updates + s.deletes + s.fetches
}

func (s *StorageSpy) PrimaryKey() []string {
	return s.inner.PrimaryKey()
}

func (s *StorageSpy) NewQuery(mapper datamapper.Mapper) datamapper.NativeQuery {
	return &nativeQuerySpy{NativeQuery: s.inner.NewQuery(mapper), spy: s}
}

func (s *StorageSpy) Insert(ctx context.Context, fields datamapper.Record) (datamapper.Record, error) {
	s.mu.Lock()
	s.inserts++
	failure := s.failInsert
	s.mu.Unlock()

	if failure != nil {
		return nil, failure
	}

	return s.inner.Insert(ctx, fields)
}

func (s *StorageSpy) Update(ctx context.Context, primary datamapper.Record, fields datamapper.Record) error {
	s.mu.Lock()
	s.updates++
	s.lastUpdate = fields.Clone()
	failure := s.failUpdate
	s.mu.Unlock()

	if failure != nil {
		return failure
	}

	return s.inner.Update(ctx, primary, fields)
}

func (s *StorageSpy) Delete(ctx context.Context, primary datamapper.Record) error {
	s.mu.Lock()
	s.deletes++
	failure := s.failDelete
	s.mu.Unlock()

	if failure != nil {
		return failure
	}

	return s.inner.Delete(ctx, primary)
}

func (s *StorageSpy) RunInTransaction(ctx context.Context, body func(ctx context.Context) error) error {
	s.mu.Lock()
	s.transactions++
	s.mu.Unlock()

	return s.inner.RunInTransaction(ctx, body)
}

func (s *StorageSpy) countFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
}

type nativeQuerySpy struct {
	datamapper.NativeQuery
	spy *StorageSpy
}

func (q *nativeQuerySpy) FetchOne(ctx context.Context) (datamapper.Record, bool, error) {
	q.spy.countFetch()
	return q.NativeQuery.FetchOne(ctx)
}

func (q *nativeQuerySpy) FetchAll(ctx context.Context) ([]datamapper.Record, error) {
	q.spy.countFetch()
	return q.NativeQuery.FetchAll(ctx)
}

func (q *nativeQuerySpy) Count(ctx context.Context) (int64, error) {
	q.spy.countFetch()
	return q.NativeQuery.Count(ctx)
}
