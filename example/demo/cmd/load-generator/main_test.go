package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/example/shop"
)

func Test_parseScenarioWeights(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []int
		wantErr  bool
	}{
		{name: "default", input: defaultScenarioWeights, expected: []int{50, 40, 10}},
		{name: "spaces are trimmed", input: " 20, 70 ,10", expected: []int{20, 70, 10}},
		{name: "too few weights", input: "50,50", wantErr: true},
		{name: "not a number", input: "50,x,50", wantErr: true},
		{name: "out of range", input: "120,-10,-10", wantErr: true},
		{name: "sum is not 100", input: "10,10,10", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			weights, err := parseScenarioWeights(tc.input)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, weights)
		})
	}
}

func Test_selectScenario_FollowsTheWeights(t *testing.T) {
	testCases := []struct {
		weights  []int
		expected string
	}{
		{weights: []int{100, 0, 0}, expected: scenarioPlacement},
		{weights: []int{0, 100, 0}, expected: scenarioFulfilment},
		{weights: []int{0, 0, 100}, expected: scenarioCleanup},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			lg := NewLoadGenerator(nil, Config{Rate: 1, ScenarioWeights: tc.weights}, &Observability{})

			for range 20 {
				assert.Equal(t, tc.expected, lg.selectScenario())
			}
		})
	}
}

func Test_asOrder(t *testing.T) {
	priority := &shop.PriorityOrder{}

	order, err := asOrder(priority)

	require.NoError(t, err)
	assert.Same(t, &priority.Order, order)

	_, err = asOrder(nil)
	assert.ErrorIs(t, err, shop.ErrUnexpectedEntity)
}

func Test_Observability_WhenDisabled_AddsNoOptions(t *testing.T) {
	obs := &Observability{}

	assert.Empty(t, obs.RepositoryOptions())
	assert.NoError(t, obs.Shutdown(t.Context()))
}
