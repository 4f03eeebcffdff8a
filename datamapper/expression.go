package datamapper

import (
	"errors"
	"fmt"
)

// Expression is a node of a boolean criteria tree.
// The set of node types is closed: Conjunction, Disjunction and Comparison.
type Expression interface {
	isExpression()
}

// Conjunction matches when all children match.
type Conjunction struct {
	Children []Expression
}

// Disjunction matches when any child matches.
type Disjunction struct {
	Children []Expression
}

// Comparison compares one domain field with an operand.
type Comparison struct {
	Field    string
	Operator Operator
	Operand  any
	Negated  bool
}

func (Conjunction) isExpression() {}
func (Disjunction) isExpression() {}
func (Comparison) isExpression()  {}

// Operator is the comparison operator of a Comparison.
type Operator int

const (
	OpEquals Operator = iota + 1
	OpSame
	OpNotEquals
	OpNotSame
	OpIn
	OpNotIn
	OpContains
	OpNotContains
	OpStartsWith
	OpNotStartsWith
	OpEndsWith
	OpNotEndsWith
	OpGreaterThan
	OpGreaterThanEqual
	OpLessThan
	OpLessThanEqual

	// OpMatches is a full text search predicate. It has no negated form.
	OpMatches
)

var operatorNames = map[Operator]string{
	OpEquals:           "equals",
	OpSame:             "same",
	OpNotEquals:        "not_equals",
	OpNotSame:          "not_same",
	OpIn:               "in",
	OpNotIn:            "not_in",
	OpContains:         "contains",
	OpNotContains:      "not_contains",
	OpStartsWith:       "starts_with",
	OpNotStartsWith:    "not_starts_with",
	OpEndsWith:         "ends_with",
	OpNotEndsWith:      "not_ends_with",
	OpGreaterThan:      "greater_than",
	OpGreaterThanEqual: "greater_than_equal",
	OpLessThan:         "less_than",
	OpLessThanEqual:    "less_than_equal",
	OpMatches:          "matches",
}

var negatedOperators = map[Operator]Operator{
	OpEquals:           OpNotEquals,
	OpNotEquals:        OpEquals,
	OpSame:             OpNotSame,
	OpNotSame:          OpSame,
	OpIn:               OpNotIn,
	OpNotIn:            OpIn,
	OpContains:         OpNotContains,
	OpNotContains:      OpContains,
	OpStartsWith:       OpNotStartsWith,
	OpNotStartsWith:    OpStartsWith,
	OpEndsWith:         OpNotEndsWith,
	OpNotEndsWith:      OpEndsWith,
	OpGreaterThan:      OpLessThanEqual,
	OpLessThanEqual:    OpGreaterThan,
	OpGreaterThanEqual: OpLessThan,
	OpLessThan:         OpGreaterThanEqual,
}

// String returns the operator's name for logging and error messages.
func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}

	return fmt.Sprintf("operator(%d)", int(o))
}

// Negate returns the positive-form operator that is the logical negation of o.
// The second return value is false for operators without a negated form.
func (o Operator) Negate() (Operator, bool) {
	negated, ok := negatedOperators[o]

	return negated, ok
}

var errNoPositiveCounterpart = errors.New("operator has no positive counterpart")

// Resolve returns the operator the comparison evaluates with, rewriting a negated comparison to its
// positive-form counterpart. It fails with ErrUnsupportedExpression when no such operator exists.
func (c Comparison) Resolve() (Operator, error) {
	if !c.Negated {
		return c.Operator, nil
	}

	negated, ok := c.Operator.Negate()
	if !ok {
		return 0, fmt.Errorf("%w: negated %s on field %q: %w", ErrUnsupportedExpression, c.Operator, c.Field, errNoPositiveCounterpart)
	}

	return negated, nil
}

// And combines expressions into a Conjunction.
func And(expressions ...Expression) Conjunction {
	return Conjunction{Children: expressions}
}

// Or combines expressions into a Disjunction.
func Or(expressions ...Expression) Disjunction {
	return Disjunction{Children: expressions}
}

// Not negates an expression.
// Comparisons toggle their Negated flag, groups are rewritten with De Morgan's laws,
// so the resulting tree never contains a dedicated NOT node.
func Not(expression Expression) Expression {
	switch e := expression.(type) {
	case Comparison:
		e.Negated = !e.Negated
		return e

	case Conjunction:
		return Disjunction{Children: negateAll(e.Children)}

	case Disjunction:
		return Conjunction{Children: negateAll(e.Children)}

	default:
		return expression
	}
}

func negateAll(expressions []Expression) []Expression {
	negated := make([]Expression, 0, len(expressions))
	for _, expression := range expressions {
		negated = append(negated, Not(expression))
	}

	return negated
}

// Eq matches when the field equals value. A nil value matches NULL.
func Eq(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpEquals, Operand: value}
}

// Same matches when the field is identical to value.
func Same(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpSame, Operand: value}
}

// Neq matches when the field does not equal value. A nil value matches NOT NULL.
func Neq(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpNotEquals, Operand: value}
}

// NotSame matches when the field is not identical to value.
func NotSame(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpNotSame, Operand: value}
}

// In matches when the field equals one of the values.
func In(field string, values ...any) Comparison {
	return Comparison{Field: field, Operator: OpIn, Operand: values}
}

// Contains matches when the field contains value as a substring.
func Contains(field string, value string) Comparison {
	return Comparison{Field: field, Operator: OpContains, Operand: value}
}

// StartsWith matches when the field starts with prefix.
func StartsWith(field string, prefix string) Comparison {
	return Comparison{Field: field, Operator: OpStartsWith, Operand: prefix}
}

// EndsWith matches when the field ends with suffix.
func EndsWith(field string, suffix string) Comparison {
	return Comparison{Field: field, Operator: OpEndsWith, Operand: suffix}
}

// Gt matches when the field is greater than value.
func Gt(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpGreaterThan, Operand: value}
}

// Gte matches when the field is greater than or equal to value.
func Gte(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpGreaterThanEqual, Operand: value}
}

// Lt matches when the field is less than value.
func Lt(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpLessThan, Operand: value}
}

// Lte matches when the field is less than or equal to value.
func Lte(field string, value any) Comparison {
	return Comparison{Field: field, Operator: OpLessThanEqual, Operand: value}
}

// Matches is a full text search on the field. It can not be negated.
func Matches(field string, query string) Comparison {
	return Comparison{Field: field, Operator: OpMatches, Operand: query}
}

// OperandValues returns the operand of an OpIn/OpNotIn comparison as a slice.
// A scalar operand is treated as a one-element set.
func (c Comparison) OperandValues() []any {
	switch values := c.Operand.(type) {
	case []any:
		return values
	case nil:
		return nil
	default:
		return []any{values}
	}
}
