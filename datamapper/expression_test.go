package datamapper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

func Test_Not_When_ExpressionIsAComparison_TogglesTheNegatedFlag(t *testing.T) {
	negated := datamapper.Not(datamapper.Eq("status", "open"))

	comparison, ok := negated.(datamapper.Comparison)
	require.True(t, ok)
	assert.True(t, comparison.Negated)
	assert.Equal(t, datamapper.OpEquals, comparison.Operator)

	double, ok := datamapper.Not(negated).(datamapper.Comparison)
	require.True(t, ok)
	assert.False(t, double.Negated)
}

func Test_Not_When_ExpressionIsAGroup_AppliesDeMorgan(t *testing.T) {
	// arrange
	conjunction := datamapper.And(datamapper.Eq("a", 1), datamapper.Gt("b", 2))

	// act
	negated := datamapper.Not(conjunction)

	// assert
	disjunction, ok := negated.(datamapper.Disjunction)
	require.True(t, ok)
	require.Len(t, disjunction.Children, 2)

	for _, child := range disjunction.Children {
		comparison, isComparison := child.(datamapper.Comparison)
		require.True(t, isComparison)
		assert.True(t, comparison.Negated)
	}

	back, ok := datamapper.Not(negated).(datamapper.Conjunction)
	require.True(t, ok)
	assert.Equal(t, conjunction, back)
}

func Test_Resolve_RewritesNegatedOperatorsToTheirPositiveCounterpart(t *testing.T) {
	testCases := []struct {
		operator datamapper.Operator
		expected datamapper.Operator
	}{
		{operator: datamapper.OpEquals, expected: datamapper.OpNotEquals},
		{operator: datamapper.OpSame, expected: datamapper.OpNotSame},
		{operator: datamapper.OpIn, expected: datamapper.OpNotIn},
		{operator: datamapper.OpNotIn, expected: datamapper.OpIn},
		{operator: datamapper.OpContains, expected: datamapper.OpNotContains},
		{operator: datamapper.OpStartsWith, expected: datamapper.OpNotStartsWith},
		{operator: datamapper.OpEndsWith, expected: datamapper.OpNotEndsWith},
		{operator: datamapper.OpGreaterThan, expected: datamapper.OpLessThanEqual},
		{operator: datamapper.OpGreaterThanEqual, expected: datamapper.OpLessThan},
		{operator: datamapper.OpLessThan, expected: datamapper.OpGreaterThanEqual},
		{operator: datamapper.OpLessThanEqual, expected: datamapper.OpGreaterThan},
	}

	for _, tc := range testCases {
		t.Run(tc.operator.String(), func(t *testing.T) {
			comparison := datamapper.Comparison{Field: "f", Operator: tc.operator, Operand: 1, Negated: true}

			resolved, err := comparison.Resolve()

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, resolved)
		})
	}
}

func Test_Resolve_When_MatchesIsNegated_FailsWithUnsupportedExpression(t *testing.T) {
	comparison, ok := datamapper.Not(datamapper.Matches("title", "go")).(datamapper.Comparison)
	require.True(t, ok)

	_, err := comparison.Resolve()

	assert.ErrorIs(t, err, datamapper.ErrUnsupportedExpression)
}

func Test_Resolve_When_NotNegated_KeepsTheOperator(t *testing.T) {
	resolved, err := datamapper.Matches("title", "go").Resolve()

	assert.NoError(t, err)
	assert.Equal(t, datamapper.OpMatches, resolved)
}

func Test_OperandValues_TreatsScalarsAsOneElementSets(t *testing.T) {
	assert.Equal(t, []any{1, 2}, datamapper.In("id", 1, 2).OperandValues())
	assert.Equal(t, []any{"x"}, datamapper.Comparison{Field: "f", Operator: datamapper.OpIn, Operand: "x"}.OperandValues())
	assert.Empty(t, datamapper.Comparison{Field: "f", Operator: datamapper.OpIn}.OperandValues())
}

func Test_Operator_String(t *testing.T) {
	assert.Equal(t, "not_starts_with", datamapper.OpNotStartsWith.String())
	assert.Equal(t, "operator(99)", datamapper.Operator(99).String())
}
