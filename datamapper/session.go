package datamapper

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	jsoniter "github.com/json-iterator/go"
)

const (
	logMsgIndexKeyDisplaced = "unique index key taken over by another entity"
	logMsgMaterialized      = "entity materialized"
	logAttrRole             = "role"
	logAttrIndex            = "index"
	logAttrError            = "error"
)

// indexKeyJSON encodes index key tuples. Encoding through JSON makes numerically equal values of
// different Go types share a key and keeps tuples like ("a,b","c") and ("a","b,c") apart.
var indexKeyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is the identity map of one unit-of-work.
//
// It registers one Repository per role, keeps the last known persisted snapshot of every tracked
// entity, and maintains per-role unique indexes (the mapper's unique index fields and the storage
// primary key) pointing at the tracked entities.
//
// A Session has no internal locking. Confine it, and every Repository bound to it, to one goroutine.
type Session struct {
	roles     []*roleBinding
	byName    map[string]*roleBinding
	snapshots map[uint64]Record
	logger    Logger
}

type roleBinding struct {
	name       string
	kind       Kind
	repository *Repository
	mapper     Mapper
	objects    []Entity
	members    map[uint64]struct{}
	indexes    []*uniqueIndex
}

type uniqueIndex struct {
	name    string
	fields  []string // storage names
	entries map[string]Entity
}

// SessionOption defines a functional option for configuring a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger for the Session.
// Index key conflicts are reported at warn level, materializations at debug level.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates an empty Session.
func NewSession(options ...SessionOption) *Session {
	s := &Session{
		byName:    make(map[string]*roleBinding),
		snapshots: make(map[uint64]Record),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// RegisterRole binds a repository and its mapper to a role.
// Without an explicit role the name of the mapper's Kind is used.
// Registering the identical repository again is a no-op; a different repository for a taken role fails with ErrRoleConflict.
func (s *Session) RegisterRole(repository *Repository, role ...string) error {
	if repository == nil {
		return ErrNilStorage
	}

	kind := repository.mapper.Kind()

	name := kind.Name
	if len(role) > 0 && role[0] != "" {
		name = role[0]
	}

	if name == "" {
		return ErrEmptyRoleName
	}

	if existing, ok := s.byName[name]; ok {
		if existing.repository == repository {
			return nil
		}

		return fmt.Errorf("%w: %q", ErrRoleConflict, name)
	}

	binding := &roleBinding{
		name:       name,
		kind:       kind,
		repository: repository,
		mapper:     repository.mapper,
		members:    make(map[uint64]struct{}),
		indexes:    buildIndexes(repository.mapper, repository.storage.PrimaryKey()),
	}

	s.roles = append(s.roles, binding)
	s.byName[name] = binding

	return nil
}

func buildIndexes(mapper Mapper, primaryKey []string) []*uniqueIndex {
	indexes := make([]*uniqueIndex, 0, 2)

	if uniqueFields := mapper.UniqueIndexFields(); len(uniqueFields) > 0 {
		storageFields := make([]string, 0, len(uniqueFields))
		for _, field := range uniqueFields {
			storageFields = append(storageFields, mapper.NameToStorage(field))
		}

		indexes = append(indexes, &uniqueIndex{name: "unique", fields: storageFields, entries: make(map[string]Entity)})
	}

	if len(primaryKey) > 0 && (len(indexes) == 0 || !slices.Equal(indexes[0].fields, primaryKey)) {
		indexes = append(indexes, &uniqueIndex{name: "primary", fields: slices.Clone(primaryKey), entries: make(map[string]Entity)})
	}

	return indexes
}

// ResolveRole returns the canonical role name for a role name, an Entity, a Mapper or a *Repository.
//
// Entities (and strings naming an entity kind) resolve by their kind: an exact match on a registered
// kind wins, otherwise the first registered Kind (in registration order) declaring it as a subtype.
func (s *Session) ResolveRole(input any) (string, error) {
	binding, err := s.binding(input)
	if err != nil {
		return "", err
	}

	return binding.name, nil
}

func (s *Session) binding(input any) (*roleBinding, error) {
	switch v := input.(type) {
	case string:
		if binding, ok := s.byName[v]; ok {
			return binding, nil
		}

		if binding := s.bindingForKind(v); binding != nil {
			return binding, nil
		}

		return nil, fmt.Errorf("%w: no repository registered for role %q", ErrUnresolvableRole, v)

	case *Repository:
		for _, binding := range s.roles {
			if binding.repository == v {
				return binding, nil
			}
		}

		return nil, fmt.Errorf("%w: repository is not registered", ErrUnresolvableRole)

	case Entity:
		if binding := s.bindingForKind(v.EntityKind()); binding != nil {
			return binding, nil
		}

		return nil, fmt.Errorf("%w: entity kind %q is not registered", ErrUnresolvableRole, v.EntityKind())

	case Mapper:
		if reflect.TypeOf(v).Comparable() {
			for _, binding := range s.roles {
				if binding.mapper == v {
					return binding, nil
				}
			}
		}

		return nil, fmt.Errorf("%w: mapper %T is not registered", ErrUnresolvableRole, v)

	default:
		return nil, fmt.Errorf("%w: unsupported input %T", ErrUnresolvableRole, input)
	}
}

func (s *Session) bindingForKind(kind string) *roleBinding {
	for _, binding := range s.roles {
		if binding.kind.Name == kind {
			return binding
		}
	}

	for _, binding := range s.roles {
		if binding.kind.Accepts(kind) {
			return binding
		}
	}

	return nil
}

// Repository returns the repository registered for role.
func (s *Session) Repository(role any) (*Repository, error) {
	binding, err := s.binding(role)
	if err != nil {
		return nil, err
	}

	return binding.repository, nil
}

// Mapper returns the mapper registered for role.
func (s *Session) Mapper(role any) (Mapper, error) {
	binding, err := s.binding(role)
	if err != nil {
		return nil, err
	}

	return binding.mapper, nil
}

// Tracked returns the entities currently tracked for role, in attach order.
func (s *Session) Tracked(role any) ([]Entity, error) {
	binding, err := s.binding(role)
	if err != nil {
		return nil, err
	}

	return slices.Clone(binding.objects), nil
}

// Attach records snapshot as the entity's last known persisted state, adds the entity to its role's
// object set, and (re)builds its unique index entries from the snapshot.
// Index entries computed from a previous snapshot are purged first.
func (s *Session) Attach(entity Entity, snapshot Record) error {
	binding, err := s.binding(entity)
	if err != nil {
		return err
	}

	token := tokenOf(entity)

	if previous, ok := s.snapshots[token]; ok {
		binding.unindex(token, previous)
	}

	tracked := snapshot.Clone()
	s.snapshots[token] = tracked

	if _, ok := binding.members[token]; !ok {
		binding.members[token] = struct{}{}
		binding.objects = append(binding.objects, entity)
	}

	binding.index(entity, token, tracked, s.logger)

	return nil
}

// Detach removes the entity's index entries, removes it from its role's object set and forgets its snapshot.
// Detaching an untracked entity does nothing.
func (s *Session) Detach(entity Entity) error {
	token := peekToken(entity)
	if token == 0 {
		return nil
	}

	snapshot, ok := s.snapshots[token]
	if !ok {
		return nil
	}

	binding, err := s.binding(entity)
	if err != nil {
		return err
	}

	binding.unindex(token, snapshot)

	delete(binding.members, token)
	binding.objects = slices.DeleteFunc(binding.objects, func(e Entity) bool {
		return peekToken(e) == token
	})

	delete(s.snapshots, token)

	return nil
}

// SnapshotOf returns a copy of the entity's snapshot; false when the entity is not tracked.
func (s *Session) SnapshotOf(entity Entity) (Record, bool) {
	token := peekToken(entity)
	if token == 0 {
		return nil, false
	}

	snapshot, ok := s.snapshots[token]
	if !ok {
		return nil, false
	}

	return snapshot.Clone(), true
}

// LookupByIndex returns the tracked entity whose unique key matches partial.
// Every index of the role is tried; an index is skipped when partial lacks any of its fields,
// so a partial key never matches.
func (s *Session) LookupByIndex(role any, partial Record) (Entity, bool, error) {
	binding, err := s.binding(role)
	if err != nil {
		return nil, false, err
	}

	for _, idx := range binding.indexes {
		key, ok := idx.keyFor(partial)
		if !ok {
			continue
		}

		if entity, found := idx.entries[key]; found {
			return entity, true, nil
		}
	}

	return nil, false, nil
}

// LookupByExpression scans the role's tracked entities and returns the first whose current field values
// satisfy expression. It only sees entities loaded in this session and is never authoritative.
func (s *Session) LookupByExpression(role any, expression Expression) (Entity, bool, error) {
	binding, err := s.binding(role)
	if err != nil {
		return nil, false, err
	}

	if expression == nil {
		return nil, false, nil
	}

	for _, entity := range binding.objects {
		record, extractErr := binding.mapper.Extract(entity)
		if extractErr != nil {
			return nil, false, extractErr
		}

		matched, evalErr := Evaluate(expression, binding.mapper, record)
		if evalErr != nil {
			return nil, false, evalErr
		}

		if matched {
			return entity, true, nil
		}
	}

	return nil, false, nil
}

// Materialize resolves a storage record to an entity: the tracked entity holding the record's unique key
// is reused as is; otherwise the mapper instantiates and hydrates a new entity, which gets attached.
func (s *Session) Materialize(role any, record Record) (Entity, error) {
	binding, err := s.binding(role)
	if err != nil {
		return nil, err
	}

	if entity, found, _ := s.LookupByIndex(binding.name, record); found {
		return entity, nil
	}

	entity, err := binding.mapper.Instantiate(record)
	if err != nil {
		return nil, errors.Join(ErrMaterializingEntityFailed, err)
	}

	if err = binding.mapper.Hydrate(entity, record); err != nil {
		return nil, errors.Join(ErrMaterializingEntityFailed, err)
	}

	if err = s.Attach(entity, record); err != nil {
		return nil, errors.Join(ErrMaterializingEntityFailed, err)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgMaterialized, logAttrRole, binding.name)
	}

	return entity, nil
}

func (b *roleBinding) index(entity Entity, token uint64, record Record, logger Logger) {
	for _, idx := range b.indexes {
		key, ok := idx.keyFor(record)
		if !ok {
			continue
		}

		if holder, taken := idx.entries[key]; taken && peekToken(holder) != token && logger != nil {
			logger.Warn(logMsgIndexKeyDisplaced, logAttrRole, b.name, logAttrIndex, idx.name)
		}

		idx.entries[key] = entity
	}
}

func (b *roleBinding) unindex(token uint64, record Record) {
	for _, idx := range b.indexes {
		key, ok := idx.keyFor(record)
		if !ok {
			continue
		}

		if holder, found := idx.entries[key]; found && peekToken(holder) == token {
			delete(idx.entries, key)
		}
	}
}

// keyFor computes the index key from record. It reports false when any key field is missing, nil or an
// empty string. Zero numbers and false are valid key components.
func (idx *uniqueIndex) keyFor(record Record) (string, bool) {
	if len(idx.fields) == 0 {
		return "", false
	}

	values := make([]any, 0, len(idx.fields))
	for _, field := range idx.fields {
		val, ok := record[field]
		if !ok || isBlankKeyComponent(val) {
			return "", false
		}

		values = append(values, val)
	}

	key, err := indexKeyJSON.MarshalToString(values)
	if err != nil {
		return "", false
	}

	return key, true
}

func isBlankKeyComponent(v any) bool {
	if str, ok := v.(string); ok {
		return str == ""
	}

	return isNil(v)
}
