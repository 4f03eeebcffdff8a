package datamapper_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

func Test_Evaluate(t *testing.T) {
	mapper := newTicketMapper()
	record := datamapper.Record{"id": int64(7), "external_ref": "ORD-2024-007", "total": int64(250)}

	testCases := []struct {
		name       string
		expression datamapper.Expression
		expected   bool
	}{
		{name: "equals across number types", expression: datamapper.Eq("id", 7), expected: true},
		{name: "not equals", expression: datamapper.Neq("id", 8), expected: true},
		{name: "negated equals", expression: datamapper.Not(datamapper.Eq("id", 7)), expected: false},
		{name: "in", expression: datamapper.In("total", 100, 250), expected: true},
		{name: "not in", expression: datamapper.Not(datamapper.In("total", 100, 250)), expected: false},
		{name: "empty in", expression: datamapper.In("total"), expected: false},
		{name: "negated empty in", expression: datamapper.Not(datamapper.In("total")), expected: true},
		{name: "contains", expression: datamapper.Contains("externalRef", "2024"), expected: true},
		{name: "starts with", expression: datamapper.StartsWith("externalRef", "ORD"), expected: true},
		{name: "not starts with", expression: datamapper.Not(datamapper.StartsWith("externalRef", "ORD")), expected: false},
		{name: "ends with", expression: datamapper.EndsWith("externalRef", "007"), expected: true},
		{name: "greater than", expression: datamapper.Gt("total", 249.5), expected: true},
		{name: "negated greater than", expression: datamapper.Not(datamapper.Gt("total", 250)), expected: true},
		{name: "less than or equal", expression: datamapper.Lte("total", 250), expected: true},
		{name: "matches all terms", expression: datamapper.Matches("externalRef", "ord 007"), expected: true},
		{name: "matches missing term", expression: datamapper.Matches("externalRef", "ord 008"), expected: false},
		{name: "and", expression: datamapper.And(datamapper.Eq("id", 7), datamapper.Lt("total", 100)), expected: false},
		{name: "or", expression: datamapper.Or(datamapper.Eq("id", 8), datamapper.Gte("total", 250)), expected: true},
		{name: "empty and", expression: datamapper.And(), expected: true},
		{name: "empty or", expression: datamapper.Or(), expected: true},
		{name: "nested", expression: datamapper.And(
			datamapper.Or(datamapper.Eq("id", 1), datamapper.Eq("id", 7)),
			datamapper.Not(datamapper.Or(datamapper.Eq("total", 0), datamapper.Contains("externalRef", "X"))),
		), expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matched, err := datamapper.Evaluate(tc.expression, mapper, record)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, matched)
		})
	}
}

func Test_Evaluate_When_FieldIsNull(t *testing.T) {
	mapper := newTicketMapper()
	record := datamapper.Record{"id": int64(1), "external_ref": nil}

	isNull, err := datamapper.Evaluate(datamapper.Eq("externalRef", nil), mapper, record)
	require.NoError(t, err)
	assert.True(t, isNull)

	isNotNull, err := datamapper.Evaluate(datamapper.Neq("externalRef", nil), mapper, record)
	require.NoError(t, err)
	assert.False(t, isNotNull)

	greater, err := datamapper.Evaluate(datamapper.Gt("total", 0), mapper, record)
	require.NoError(t, err)
	assert.False(t, greater, "a missing value never satisfies a relational comparison")
}

func Test_Evaluate_When_NegatedMatches_FailsWithUnsupportedExpression(t *testing.T) {
	_, err := datamapper.Evaluate(
		datamapper.And(datamapper.Eq("id", 1), datamapper.Not(datamapper.Matches("externalRef", "x"))),
		newTicketMapper(),
		datamapper.Record{"id": int64(1)},
	)

	assert.ErrorIs(t, err, datamapper.ErrUnsupportedExpression)
}

func Test_Evaluate_When_ValuesAreNotComparable_FailsWithUnsupportedExpression(t *testing.T) {
	_, err := datamapper.Evaluate(
		datamapper.Gt("total", "many"),
		newTicketMapper(),
		datamapper.Record{"total": int64(1)},
	)

	assert.ErrorIs(t, err, datamapper.ErrUnsupportedExpression)
}

func Test_CompareValues(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	testCases := []struct {
		name     string
		a, b     any
		expected int
	}{
		{name: "numbers of different types", a: int32(2), b: 1.5, expected: 1},
		{name: "equal numbers", a: uint8(3), b: int64(3), expected: 0},
		{name: "large integers", a: int64(9007199254740993), b: int64(9007199254740992), expected: 1},
		{name: "negative before unsigned", a: int64(-1), b: uint64(math.MaxUint64), expected: -1},
		{name: "unsigned after negative", a: uint64(0), b: int8(-3), expected: 1},
		{name: "integer and float", a: int64(2), b: 2.5, expected: -1},
		{name: "strings", a: "abc", b: "abd", expected: -1},
		{name: "times", a: late, b: early, expected: 1},
		{name: "bools", a: false, b: true, expected: -1},
		{name: "null first", a: nil, b: 0, expected: -1},
		{name: "both null", a: nil, b: nil, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmp, err := datamapper.CompareValues(tc.a, tc.b)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, cmp)
		})
	}
}
