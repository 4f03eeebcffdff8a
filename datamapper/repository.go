package datamapper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	logMsgSaveSkipped             = "save skipped, no changed fields"
	logMsgEntityInserted          = "entity inserted"
	logMsgEntityUpdated           = "entity updated"
	logMsgEntityRemoved           = "entity removed"
	logMsgSaveFailed              = "saving entity failed"
	logMsgRemoveFailed            = "removing entity failed"
	logMsgIdentityMapHit          = "identity map hit"
	logMsgExpressionLookupSkipped = "expression lookup skipped, querying storage"
	logMsgOperation               = "repository operation: "
	logAttrChangedFields          = "changed_fields"
	logAttrDurationMS             = "duration_ms"
	logAttrLookup                 = "lookup"
	spanAttrRole                  = "role"
	spanAttrError                 = "error"
	operationSave                 = "save"
	operationRemove               = "remove"
	operationFindByPrimary        = "find_by_primary"
	operationFindAll              = "find_all"
	operationFindOne              = "find_one"
	operationCount                = "count"
	lookupIndex                   = "index"
	lookupExpression              = "expression"
)

// Repository orchestrates save, remove and find operations for one role.
// It computes diffs against the Session snapshots, delegates storage calls to its Storage,
// and keeps the Session consistent after every successful mutation.
type Repository struct {
	session          *Session
	mapper           Mapper
	storage          Storage
	role             string
	indexLookup      bool
	expressionLookup bool
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// Option defines a functional option for configuring a Repository.
type Option func(*Repository) error

// WithRole registers the repository under an explicit role instead of the mapper's kind name.
func WithRole(role string) Option {
	return func(r *Repository) error {
		if role == "" {
			return ErrEmptyRoleName
		}

		r.role = role

		return nil
	}
}

// WithIndexLookup makes FindByPrimary answer from the Session's primary key index before querying storage.
func WithIndexLookup() Option {
	return func(r *Repository) error {
		r.indexLookup = true
		return nil
	}
}

// WithExpressionLookup makes FindOne scan the Session's tracked entities before querying storage.
// The scan only sees entities loaded in this session, so a hit may be stale compared to storage.
func WithExpressionLookup() Option {
	return func(r *Repository) error {
		r.expressionLookup = true
		return nil
	}
}

// WithLogger sets the logger for the Repository.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: identity map hits, skipped saves
// Info level: inserts, updates, removals with durations (production-safe)
// Error level: failed saves and removals.
func WithLogger(logger Logger) Option {
	return func(r *Repository) error {
		r.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Repository.
// It receives the same messages as the Logger, together with the operation's context.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(r *Repository) error {
		r.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Repository.
// The collector receives operation durations, error counters and identity map hits.
func WithMetrics(collector MetricsCollector) Option {
	return func(r *Repository) error {
		r.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Repository.
// Every public operation runs inside a span named SpanNamePrefix + operation, and the span's context
// is passed on to the Storage.
func WithTracing(collector TracingCollector) Option {
	return func(r *Repository) error {
		r.tracingCollector = collector
		return nil
	}
}

// NewRepository creates a Repository and registers it with the session.
func NewRepository(session *Session, mapper Mapper, storage Storage, options ...Option) (*Repository, error) {
	if session == nil {
		return nil, ErrNilSession
	}

	if mapper == nil {
		return nil, ErrNilMapper
	}

	if storage == nil {
		return nil, ErrNilStorage
	}

	r := &Repository{
		session: session,
		mapper:  mapper,
		storage: storage,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	if err := session.RegisterRole(r, r.role); err != nil {
		return nil, err
	}

	role, err := session.ResolveRole(r)
	if err != nil {
		return nil, err
	}

	r.role = role

	return r, nil
}

// Role returns the role the repository is registered under.
func (r *Repository) Role() string {
	return r.role
}

// Mapper returns the repository's mapper.
func (r *Repository) Mapper() Mapper {
	return r.mapper
}

// Session returns the session the repository is bound to.
func (r *Repository) Session() *Session {
	return r.session
}

// Query opens a new Query for the repository's role.
func (r *Repository) Query() *Query {
	return newQuery(r.storage.NewQuery(r.mapper), r.session, r.role)
}

// Save persists the entity.
//
// An untracked entity is inserted; a tracked entity is updated with only the fields that differ from its
// snapshot, and nothing happens when no field changed. The write runs inside one transactional scope
// of the Storage. Afterward the merged record (old snapshot, extracted record, generated keys) becomes
// the entity's snapshot and is hydrated back into the entity.
func (r *Repository) Save(ctx context.Context, entity Entity) error {
	ctx, span := r.startSpan(ctx, operationSave)
	err := r.save(ctx, entity)
	r.finishSpan(span, err)

	return err
}

func (r *Repository) save(ctx context.Context, entity Entity) error {
	start := time.Now()

	snapshot, tracked := r.session.SnapshotOf(entity)

	record, err := r.mapper.Extract(entity)
	if err != nil {
		return r.failSave(ctx, start, err)
	}

	primaryKey := r.storage.PrimaryKey()

	var primary Record
	var changed Record

	if tracked {
		primary = snapshot.Pick(primaryKey...)
		if len(primary) != len(primaryKey) {
			return r.failSave(ctx, start, fmt.Errorf("%w: snapshot lacks primary key fields", ErrInvalidPrimaryKey))
		}

		changed = record.Diff(snapshot)

		if len(changed) == 0 {
			r.logDebug(ctx, logMsgSaveSkipped, logAttrRole, r.role)
			return nil
		}
	} else {
		changed = record.Without(emptyFields(record, primaryKey)...)
	}

	var generated Record

	err = r.storage.RunInTransaction(ctx, func(txCtx context.Context) error {
		if primary != nil {
			return r.storage.Update(txCtx, primary, changed)
		}

		var insertErr error
		generated, insertErr = r.storage.Insert(txCtx, changed)

		return insertErr
	})
	if err != nil {
		return r.failSave(ctx, start, err)
	}

	merged := snapshot.Merge(record, generated)

	if err = r.session.Attach(entity, merged); err != nil {
		return r.failSave(ctx, start, err)
	}

	if err = r.mapper.Hydrate(entity, merged); err != nil {
		return r.failSave(ctx, start, err)
	}

	duration := time.Since(start)
	msg := logMsgEntityInserted
	if tracked {
		msg = logMsgEntityUpdated
	}

	r.logOperation(ctx, msg, logAttrRole, r.role, logAttrChangedFields, len(changed), logAttrDurationMS, toMilliseconds(duration))
	r.recordDuration(ctx, operationSave, StatusSuccess, duration)

	return nil
}

func (r *Repository) failSave(ctx context.Context, start time.Time, cause error) error {
	err := errors.Join(ErrSaveFailed, cause)

	r.logError(ctx, logMsgSaveFailed, err)
	r.recordFailure(ctx, operationSave, time.Since(start))

	return err
}

// emptyFields returns the given fields whose value in record is missing, nil or zero.
func emptyFields(record Record, fields []string) []string {
	empty := make([]string, 0, len(fields))

	for _, field := range fields {
		if isEmpty(record[field]) {
			empty = append(empty, field)
		}
	}

	return empty
}

// Remove deletes the entity's row inside one transactional scope and stops tracking the entity.
// Removing an untracked entity does nothing.
func (r *Repository) Remove(ctx context.Context, entity Entity) error {
	ctx, span := r.startSpan(ctx, operationRemove)
	err := r.remove(ctx, entity)
	r.finishSpan(span, err)

	return err
}

func (r *Repository) remove(ctx context.Context, entity Entity) error {
	snapshot, tracked := r.session.SnapshotOf(entity)
	if !tracked {
		return nil
	}

	start := time.Now()
	primaryKey := r.storage.PrimaryKey()

	primary := snapshot.Pick(primaryKey...)
	if len(primary) != len(primaryKey) {
		return errors.Join(ErrRemoveFailed, fmt.Errorf("%w: snapshot lacks primary key fields", ErrInvalidPrimaryKey))
	}

	err := r.storage.RunInTransaction(ctx, func(txCtx context.Context) error {
		return r.storage.Delete(txCtx, primary)
	})
	if err != nil {
		err = errors.Join(ErrRemoveFailed, err)
		r.logError(ctx, logMsgRemoveFailed, err)
		r.recordFailure(ctx, operationRemove, time.Since(start))

		return err
	}

	if err = r.session.Detach(entity); err != nil {
		return errors.Join(ErrRemoveFailed, err)
	}

	duration := time.Since(start)
	r.logOperation(ctx, logMsgEntityRemoved, logAttrRole, r.role, logAttrDurationMS, toMilliseconds(duration))
	r.recordDuration(ctx, operationRemove, StatusSuccess, duration)

	return nil
}

// FindByPrimary returns the entity with the given primary key.
//
// primary is a scalar for single-column keys, a []any in key order, or a Record / map[string]any keyed by
// domain or storage field names. Each key component is looked up by domain name, then storage name, then
// position. A value not matching the key's arity fails with ErrInvalidPrimaryKey before any storage call;
// a missing row fails with ErrNotFound.
func (r *Repository) FindByPrimary(ctx context.Context, primary any) (Entity, error) {
	ctx, span := r.startSpan(ctx, operationFindByPrimary)
	entity, err := r.findByPrimary(ctx, primary)
	r.finishSpan(span, err)

	return entity, err
}

func (r *Repository) findByPrimary(ctx context.Context, primary any) (Entity, error) {
	start := time.Now()
	primaryKey := r.storage.PrimaryKey()

	values, err := normalizePrimary(primary, primaryKey, r.mapper)
	if err != nil {
		return nil, err
	}

	conditions := make([]Expression, 0, len(primaryKey))
	for i, key := range primaryKey {
		conditions = append(conditions, Same(r.mapper.NameToDomain(key), values[i]))
	}

	if r.indexLookup {
		entity, found, lookupErr := r.lookupPrimary(primaryKey, values)
		if lookupErr != nil {
			return nil, lookupErr
		}

		if found {
			r.recordIdentityMapHit(ctx, lookupIndex)
			return entity, nil
		}
	}

	query := r.Query()
	if err = query.Matching(NewCriteria().Where(And(conditions...))); err != nil {
		return nil, err
	}

	entity, found, err := query.FetchOne(ctx)
	if err != nil {
		r.recordFailure(ctx, operationFindByPrimary, time.Since(start))
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: role %q, primary %v", ErrNotFound, r.role, values)
	}

	r.recordDuration(ctx, operationFindByPrimary, StatusSuccess, time.Since(start))

	return entity, nil
}

func (r *Repository) lookupPrimary(primaryKey []string, values []any) (Entity, bool, error) {
	partial := make(Record, len(primaryKey))

	for i, key := range primaryKey {
		val, err := r.mapper.ValueToStorage(r.mapper.NameToDomain(key), values[i])
		if err != nil {
			return nil, false, errors.Join(ErrInvalidPrimaryKey, err)
		}

		partial[key] = val
	}

	return r.session.LookupByIndex(r.role, partial)
}

func normalizePrimary(primary any, primaryKey []string, mapper Mapper) ([]any, error) {
	if len(primaryKey) == 0 {
		return nil, fmt.Errorf("%w: role has no primary key", ErrInvalidPrimaryKey)
	}

	var lookup func(i int, key string) (any, bool)
	var arity int

	switch p := primary.(type) {
	case Record:
		arity = len(p)
		lookup = lookupByName(p, mapper)
	case map[string]any:
		arity = len(p)
		lookup = lookupByName(p, mapper)
	case []any:
		arity = len(p)
		lookup = func(i int, _ string) (any, bool) {
			return p[i], true
		}
	default:
		arity = 1
		lookup = func(int, string) (any, bool) {
			return primary, true
		}
	}

	if arity != len(primaryKey) {
		return nil, fmt.Errorf("%w: expected %d components, got %d", ErrInvalidPrimaryKey, len(primaryKey), arity)
	}

	values := make([]any, len(primaryKey))
	for i, key := range primaryKey {
		val, ok := lookup(i, key)
		if !ok || isNil(val) {
			return nil, fmt.Errorf("%w: missing component %q", ErrInvalidPrimaryKey, key)
		}

		values[i] = val
	}

	return values, nil
}

func lookupByName(values map[string]any, mapper Mapper) func(i int, key string) (any, bool) {
	return func(_ int, key string) (any, bool) {
		for _, name := range []string{mapper.NameToDomain(key), key} {
			if val, ok := values[name]; ok {
				return val, true
			}
		}

		return nil, false
	}
}

// FindAll returns all entities matching criteria, materialized through the Session.
func (r *Repository) FindAll(ctx context.Context, criteria Criteria) ([]Entity, error) {
	ctx, span := r.startSpan(ctx, operationFindAll)
	entities, err := r.findAll(ctx, criteria)
	r.finishSpan(span, err)

	return entities, err
}

func (r *Repository) findAll(ctx context.Context, criteria Criteria) ([]Entity, error) {
	start := time.Now()

	query := r.Query()
	if err := query.Matching(criteria); err != nil {
		return nil, err
	}

	entities, err := query.FetchAll(ctx)
	if err != nil {
		r.recordFailure(ctx, operationFindAll, time.Since(start))
		return nil, err
	}

	r.recordDuration(ctx, operationFindAll, StatusSuccess, time.Since(start))

	return entities, nil
}

// FindOne returns the first entity matching criteria; false when there is none.
// With WithExpressionLookup the Session's tracked entities are scanned first; storage is queried
// when none matches or the scan can not evaluate the expression.
func (r *Repository) FindOne(ctx context.Context, criteria Criteria) (Entity, bool, error) {
	ctx, span := r.startSpan(ctx, operationFindOne)
	entity, found, err := r.findOne(ctx, criteria)
	r.finishSpan(span, err)

	return entity, found, err
}

func (r *Repository) findOne(ctx context.Context, criteria Criteria) (Entity, bool, error) {
	start := time.Now()

	if r.expressionLookup && criteria.Expression() != nil {
		entity, found, err := r.session.LookupByExpression(r.role, criteria.Expression())
		switch {
		case errors.Is(err, errNoPositiveCounterpart):
			return nil, false, err
		case err != nil:
			// The session can not decide this expression, storage may.
			r.logDebug(ctx, logMsgExpressionLookupSkipped, logAttrRole, r.role, logAttrError, err.Error())
		case found:
			r.recordIdentityMapHit(ctx, lookupExpression)
			return entity, true, nil
		}
	}

	query := r.Query()
	if err := query.Matching(criteria); err != nil {
		return nil, false, err
	}

	entity, found, err := query.FetchOne(ctx)
	if err != nil {
		r.recordFailure(ctx, operationFindOne, time.Since(start))
		return nil, false, err
	}

	r.recordDuration(ctx, operationFindOne, StatusSuccess, time.Since(start))

	return entity, found, nil
}

// Count returns the number of rows matching criteria.
func (r *Repository) Count(ctx context.Context, criteria Criteria) (int64, error) {
	ctx, span := r.startSpan(ctx, operationCount)
	count, err := r.count(ctx, criteria)
	r.finishSpan(span, err)

	return count, err
}

func (r *Repository) count(ctx context.Context, criteria Criteria) (int64, error) {
	start := time.Now()

	query := r.Query()
	if err := query.Matching(criteria); err != nil {
		return 0, err
	}

	count, err := query.Count(ctx)
	if err != nil {
		r.recordFailure(ctx, operationCount, time.Since(start))
		return 0, err
	}

	r.recordDuration(ctx, operationCount, StatusSuccess, time.Since(start))

	return count, nil
}

/***** observability *****/

func (r *Repository) logDebug(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (r *Repository) logOperation(ctx context.Context, action string, args ...any) {
	if r.logger != nil {
		r.logger.Info(logMsgOperation+action, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

func (r *Repository) logError(ctx context.Context, msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, logAttrRole, r.role, logAttrError, err.Error())
	}

	if r.contextualLogger != nil {
		r.contextualLogger.ErrorContext(ctx, msg, logAttrRole, r.role, logAttrError, err.Error())
	}
}

func (r *Repository) recordDuration(ctx context.Context, operation, status string, duration time.Duration) {
	if r.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, MetricOperationDuration, duration, r.labels(operation, status))
		return
	}

	r.metricsCollector.RecordDuration(MetricOperationDuration, duration, r.labels(operation, status))
}

func (r *Repository) recordFailure(ctx context.Context, operation string, duration time.Duration) {
	r.recordDuration(ctx, operation, StatusError, duration)
	r.incrementCounter(ctx, MetricOperationErrors, r.labels(operation, StatusError))
}

func (r *Repository) recordIdentityMapHit(ctx context.Context, lookup string) {
	r.logDebug(ctx, logMsgIdentityMapHit, logAttrRole, r.role, logAttrLookup, lookup)

	r.incrementCounter(ctx, MetricIdentityMapHits, map[string]string{
		LabelRole:     r.role,
		logAttrLookup: lookup,
	})
}

func (r *Repository) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if r.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	r.metricsCollector.IncrementCounter(metric, labels)
}

// startSpan starts a tracing span if the tracing collector is configured.
func (r *Repository) startSpan(ctx context.Context, operation string) (context.Context, SpanContext) {
	if r.tracingCollector == nil {
		return ctx, nil
	}

	return r.tracingCollector.StartSpan(ctx, SpanNamePrefix+operation, map[string]string{spanAttrRole: r.role})
}

// finishSpan finishes a tracing span with success or error status.
func (r *Repository) finishSpan(span SpanContext, err error) {
	if r.tracingCollector == nil || span == nil {
		return
	}

	if err != nil {
		r.tracingCollector.FinishSpan(span, StatusError, map[string]string{spanAttrError: err.Error()})
		return
	}

	r.tracingCollector.FinishSpan(span, StatusSuccess, nil)
}

func (r *Repository) labels(operation, status string) map[string]string {
	return map[string]string{
		LabelOperation: operation,
		LabelStatus:    status,
		LabelRole:      r.role,
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
