package datamapper

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// Record is a flat field-name/value set in the storage vocabulary.
type Record map[string]any

// Clone returns a shallow copy of the record. A nil record clones to an empty one.
func (r Record) Clone() Record {
	clone := make(Record, len(r))
	maps.Copy(clone, r)

	return clone
}

// Pick returns a new record containing only the given fields that are present in r.
func (r Record) Pick(fields ...string) Record {
	picked := make(Record, len(fields))

	for _, field := range fields {
		if val, ok := r[field]; ok {
			picked[field] = val
		}
	}

	return picked
}

// Without returns a copy of r without the given fields.
func (r Record) Without(fields ...string) Record {
	clone := r.Clone()

	for _, field := range fields {
		delete(clone, field)
	}

	return clone
}

// Merge returns a new record with r as base and each layer applied on top in order.
func (r Record) Merge(layers ...Record) Record {
	merged := r.Clone()

	for _, layer := range layers {
		maps.Copy(merged, layer)
	}

	return merged
}

// Diff returns the fields of r whose value differs from base.
// A field missing from base always counts as changed.
func (r Record) Diff(base Record) Record {
	changed := make(Record)

	for field, val := range r {
		baseVal, ok := base[field]
		if !ok || !ValuesEqual(val, baseVal) {
			changed[field] = val
		}
	}

	return changed
}

// Fields returns the sorted field names of the record.
func (r Record) Fields() []string {
	return slices.Sorted(maps.Keys(r))
}

// ValuesEqual reports whether two storage values are equal.
// Numbers compare by value regardless of their Go type, times by instant, everything else by deep equality.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}

	if order, ok := compareNumbers(a, b); ok {
		return order == 0
	}

	if at, ok := a.(time.Time); ok {
		bt, isTime := b.(time.Time)
		return isTime && at.Equal(bt)
	}

	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// isEmpty reports whether v is nil or the zero value of its type.
func isEmpty(v any) bool {
	if isNil(v) {
		return true
	}

	return reflect.ValueOf(v).IsZero()
}
