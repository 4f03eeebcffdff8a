package pgengine

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

const textSearchCondition = "to_tsvector(?) @@ plainto_tsquery(?)"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FilterFunc appends one compiled condition to a goqu expression list and returns the extended list.
type FilterFunc func(exp.ExpressionList) exp.ExpressionList

// Compiler turns datamapper expressions into goqu conditions.
// Field names and operands are translated with the mapper before they reach SQL.
type Compiler struct {
	mapper datamapper.Mapper
}

// NewCompiler creates a Compiler translating names and values with mapper.
func NewCompiler(mapper datamapper.Mapper) Compiler {
	return Compiler{mapper: mapper}
}

// Compile compiles expression into a FilterFunc.
//
// Every Conjunction and Disjunction becomes its own nested goqu.And / goqu.Or list, so grouping survives
// at any depth. Negated comparisons are rewritten to the negated operator; an operator without one
// fails with datamapper.ErrUnsupportedExpression and no NOT is ever emitted.
func (c Compiler) Compile(expression datamapper.Expression) (FilterFunc, error) {
	switch e := expression.(type) {
	case datamapper.Conjunction:
		children, err := c.compileAll(e.Children)
		if err != nil {
			return nil, err
		}

		return group(goqu.And, children), nil

	case datamapper.Disjunction:
		children, err := c.compileAll(e.Children)
		if err != nil {
			return nil, err
		}

		return group(goqu.Or, children), nil

	case datamapper.Comparison:
		condition, err := c.compileComparison(e)
		if err != nil {
			return nil, err
		}

		return func(list exp.ExpressionList) exp.ExpressionList {
			return list.Append(condition)
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", datamapper.ErrUnsupportedExpression, expression)
	}
}

// Condition compiles expression into a single goqu expression ready for a Where clause.
func (c Compiler) Condition(expression datamapper.Expression) (exp.Expression, error) {
	filter, err := c.Compile(expression)
	if err != nil {
		return nil, err
	}

	return filter(goqu.And()), nil
}

func (c Compiler) compileAll(expressions []datamapper.Expression) ([]FilterFunc, error) {
	filters := make([]FilterFunc, 0, len(expressions))

	for _, expression := range expressions {
		filter, err := c.Compile(expression)
		if err != nil {
			return nil, err
		}

		filters = append(filters, filter)
	}

	return filters, nil
}

// group nests the children in a list of their own. An empty group is TRUE.
func group(newList func(...exp.Expression) exp.ExpressionList, children []FilterFunc) FilterFunc {
	return func(list exp.ExpressionList) exp.ExpressionList {
		if len(children) == 0 {
			return list.Append(goqu.L("TRUE"))
		}

		sub := newList()
		for _, child := range children {
			sub = child(sub)
		}

		return list.Append(sub)
	}
}

func (c Compiler) compileComparison(comparison datamapper.Comparison) (exp.Expression, error) {
	operator, err := comparison.Resolve()
	if err != nil {
		return nil, err
	}

	column := goqu.C(c.mapper.NameToStorage(comparison.Field))

	if operator == datamapper.OpIn || operator == datamapper.OpNotIn {
		return c.compileMembership(column, operator, comparison)
	}

	value, err := c.mapper.ValueToStorage(comparison.Field, comparison.Operand)
	if err != nil {
		return nil, err
	}

	switch operator {
	case datamapper.OpEquals, datamapper.OpSame:
		if value == nil {
			return column.IsNull(), nil
		}

		return column.Eq(value), nil

	case datamapper.OpNotEquals, datamapper.OpNotSame:
		if value == nil {
			return column.IsNotNull(), nil
		}

		return column.Neq(value), nil

	case datamapper.OpContains, datamapper.OpStartsWith, datamapper.OpEndsWith:
		pattern, patternErr := likePattern(operator, comparison.Field, value)
		if patternErr != nil {
			return nil, patternErr
		}

		return column.Like(pattern), nil

	case datamapper.OpNotContains, datamapper.OpNotStartsWith, datamapper.OpNotEndsWith:
		pattern, patternErr := likePattern(operator, comparison.Field, value)
		if patternErr != nil {
			return nil, patternErr
		}

		return column.NotLike(pattern), nil

	case datamapper.OpGreaterThan:
		return column.Gt(value), nil

	case datamapper.OpGreaterThanEqual:
		return column.Gte(value), nil

	case datamapper.OpLessThan:
		return column.Lt(value), nil

	case datamapper.OpLessThanEqual:
		return column.Lte(value), nil

	case datamapper.OpMatches:
		return goqu.L(textSearchCondition, column, value), nil

	default:
		return nil, fmt.Errorf("%w: %s on field %q", datamapper.ErrUnsupportedExpression, operator, comparison.Field)
	}
}

// compileMembership renders IN / NOT IN. An empty set can not be written in SQL, so it becomes FALSE
// for IN and TRUE for NOT IN.
func (c Compiler) compileMembership(
	column exp.IdentifierExpression,
	operator datamapper.Operator,
	comparison datamapper.Comparison,
) (exp.Expression, error) {

	operands := comparison.OperandValues()
	values := make([]any, 0, len(operands))

	for _, operand := range operands {
		value, err := c.mapper.ValueToStorage(comparison.Field, operand)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	if len(values) == 0 {
		if operator == datamapper.OpIn {
			return goqu.L("FALSE"), nil
		}

		return goqu.L("TRUE"), nil
	}

	if operator == datamapper.OpIn {
		return column.In(values), nil
	}

	return column.NotIn(values), nil
}

func likePattern(operator datamapper.Operator, field string, value any) (string, error) {
	if value == nil {
		return "", fmt.Errorf("%w: %s with NULL on field %q", datamapper.ErrUnsupportedExpression, operator, field)
	}

	escaped := likeEscaper.Replace(fmt.Sprint(value))

	switch operator {
	case datamapper.OpStartsWith, datamapper.OpNotStartsWith:
		return escaped + "%", nil
	case datamapper.OpEndsWith, datamapper.OpNotEndsWith:
		return "%" + escaped, nil
	default:
		return "%" + escaped + "%", nil
	}
}
