package datamapper

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var errIncomparableValues = errors.New("values are not comparable")

// Evaluate reports whether a record in the storage vocabulary satisfies the expression.
//
// Field names and operands are translated with the mapper exactly as an engine compiler would do,
// and negation is resolved with Comparison.Resolve, so an expression the engines can not represent
// fails here with ErrUnsupportedExpression as well.
func Evaluate(expression Expression, mapper Mapper, record Record) (bool, error) {
	switch e := expression.(type) {
	case Conjunction:
		for _, child := range e.Children {
			matched, err := Evaluate(child, mapper, record)
			if err != nil || !matched {
				return false, err
			}
		}

		return true, nil

	case Disjunction:
		for _, child := range e.Children {
			matched, err := Evaluate(child, mapper, record)
			if err != nil {
				return false, err
			}

			if matched {
				return true, nil
			}
		}

		return len(e.Children) == 0, nil

	case Comparison:
		return evaluateComparison(e, mapper, record)

	default:
		return false, fmt.Errorf("%w: %T", ErrUnsupportedExpression, expression)
	}
}

func evaluateComparison(c Comparison, mapper Mapper, record Record) (bool, error) {
	operator, err := c.Resolve()
	if err != nil {
		return false, err
	}

	field := mapper.NameToStorage(c.Field)
	actual := record[field]

	switch operator {
	case OpIn, OpNotIn:
		found := false
		for _, v := range c.OperandValues() {
			expected, convErr := mapper.ValueToStorage(c.Field, v)
			if convErr != nil {
				return false, convErr
			}

			if ValuesEqual(actual, expected) {
				found = true
				break
			}
		}

		return found == (operator == OpIn), nil
	}

	expected, err := mapper.ValueToStorage(c.Field, c.Operand)
	if err != nil {
		return false, err
	}

	switch operator {
	case OpEquals, OpSame:
		return ValuesEqual(actual, expected), nil

	case OpNotEquals, OpNotSame:
		return !ValuesEqual(actual, expected), nil

	case OpContains, OpNotContains:
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(expected)) == (operator == OpContains), nil

	case OpStartsWith, OpNotStartsWith:
		return strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(expected)) == (operator == OpStartsWith), nil

	case OpEndsWith, OpNotEndsWith:
		return strings.HasSuffix(fmt.Sprint(actual), fmt.Sprint(expected)) == (operator == OpEndsWith), nil

	case OpGreaterThan, OpGreaterThanEqual, OpLessThan, OpLessThanEqual:
		if isNil(actual) || isNil(expected) {
			return false, nil // NULL never satisfies a relational comparison
		}

		order, cmpErr := CompareValues(actual, expected)
		if cmpErr != nil {
			return false, fmt.Errorf("%w: field %q: %w", ErrUnsupportedExpression, c.Field, cmpErr)
		}

		switch operator {
		case OpGreaterThan:
			return order > 0, nil
		case OpGreaterThanEqual:
			return order >= 0, nil
		case OpLessThan:
			return order < 0, nil
		default:
			return order <= 0, nil
		}

	case OpMatches:
		haystack := strings.ToLower(fmt.Sprint(actual))
		for _, term := range strings.Fields(strings.ToLower(fmt.Sprint(expected))) {
			if !strings.Contains(haystack, term) {
				return false, nil
			}
		}

		return true, nil

	default:
		return false, fmt.Errorf("%w: %s on field %q", ErrUnsupportedExpression, operator, c.Field)
	}
}

// CompareValues orders two storage values: numbers by value, strings lexically, times chronologically.
// NULL sorts before everything else.
func CompareValues(a, b any) (int, error) {
	switch {
	case isNil(a) && isNil(b):
		return 0, nil
	case isNil(a):
		return -1, nil
	case isNil(b):
		return 1, nil
	}

	if order, ok := compareNumbers(a, b); ok {
		return order, nil
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}

	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), nil
		}

	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case !av:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: %T and %T", errIncomparableValues, a, b)
}

// compareNumbers orders two numeric values. Integers are compared as integers so that values beyond
// the float64 mantissa stay distinct; float64 is only used when a float is involved.
func compareNumbers(a, b any) (int, bool) {
	ai, aKind := toInteger(a)
	bi, bKind := toInteger(b)

	if aKind != notInteger && bKind != notInteger {
		return compareIntegers(ai, aKind, bi, bKind), true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if !aok || !bok {
		return 0, false
	}

	return cmp.Compare(af, bf), true
}

type integerKind int

const (
	notInteger integerKind = iota
	signedInteger
	unsignedInteger
)

type integer struct {
	signed   int64
	unsigned uint64
}

func toInteger(v any) (integer, integerKind) {
	switch n := v.(type) {
	case int:
		return integer{signed: int64(n)}, signedInteger
	case int8:
		return integer{signed: int64(n)}, signedInteger
	case int16:
		return integer{signed: int64(n)}, signedInteger
	case int32:
		return integer{signed: int64(n)}, signedInteger
	case int64:
		return integer{signed: n}, signedInteger
	case uint:
		return integer{unsigned: uint64(n)}, unsignedInteger
	case uint8:
		return integer{unsigned: uint64(n)}, unsignedInteger
	case uint16:
		return integer{unsigned: uint64(n)}, unsignedInteger
	case uint32:
		return integer{unsigned: uint64(n)}, unsignedInteger
	case uint64:
		return integer{unsigned: n}, unsignedInteger
	default:
		return integer{}, notInteger
	}
}

func compareIntegers(a integer, aKind integerKind, b integer, bKind integerKind) int {
	switch {
	case aKind == signedInteger && bKind == signedInteger:
		return cmp.Compare(a.signed, b.signed)
	case aKind == unsignedInteger && bKind == unsignedInteger:
		return cmp.Compare(a.unsigned, b.unsigned)
	case aKind == signedInteger:
		if a.signed < 0 {
			return -1
		}

		return cmp.Compare(uint64(a.signed), b.unsigned)
	default:
		if b.signed < 0 {
			return 1
		}

		return cmp.Compare(a.unsigned, uint64(b.signed))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	default:
		return 0, false
	}
}
