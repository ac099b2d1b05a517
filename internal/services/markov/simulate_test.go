package markov

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSimulator(t *testing.T, stateReturns []float64) (*Simulator, []State) {
	t.Helper()
	states := alternatingStates(300)
	e := trainedEnsemble(t, states, 3, []int{1, 2})
	sim, err := NewSimulator(e, stateReturns)
	require.NoError(t, err)
	return sim, states
}

func TestSimulateZeroHorizon(t *testing.T) {
	sim, states := testSimulator(t, []float64{-0.01, 0, 0.01})

	res, err := sim.Simulate(context.Background(), 100, states, SimConfig{HorizonDays: 0, Paths: 500, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.ExpectedPrice)
	assert.Equal(t, 100.0, res.MedianPrice)
	assert.Equal(t, [2]float64{100, 100}, res.CI68)
	assert.Equal(t, [2]float64{100, 100}, res.CI95)
	assert.False(t, res.ProbUpDefined)
	assert.True(t, math.IsNaN(res.ProbUp), "undefined direction must not report 0.5")
	assert.False(t, res.Partial)
}

func TestSimulateAggregates(t *testing.T) {
	sim, states := testSimulator(t, []float64{-0.01, 0, 0.01})

	res, err := sim.Simulate(context.Background(), 100, states, SimConfig{HorizonDays: 5, Paths: 2000, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 2000, res.Completed)
	assert.False(t, res.Partial)
	assert.True(t, res.ProbUpDefined)
	assert.InDelta(t, 1.0, res.ProbUp+res.ProbDown, 0.5) // flat paths may land exactly at the start price
	assert.LessOrEqual(t, res.CI95[0], res.CI68[0])
	assert.LessOrEqual(t, res.CI68[0], res.MedianPrice)
	assert.LessOrEqual(t, res.MedianPrice, res.CI68[1])
	assert.LessOrEqual(t, res.CI68[1], res.CI95[1])
	assert.Len(t, res.Days, 5)
	assert.Equal(t, 1, res.Days[0].Day)
	assert.GreaterOrEqual(t, res.VaRLoss, 0.0)
	assert.GreaterOrEqual(t, res.CVaRLoss, res.VaRLoss)
}

func TestSimulateDeterministicWithSeed(t *testing.T) {
	sim, states := testSimulator(t, []float64{-0.01, 0, 0.01})
	cfg := SimConfig{HorizonDays: 10, Paths: 500, Seed: 7}

	r1, err := sim.Simulate(context.Background(), 50, states, cfg)
	require.NoError(t, err)
	r2, err := sim.Simulate(context.Background(), 50, states, cfg)
	require.NoError(t, err)

	assert.Equal(t, r1.ExpectedPrice, r2.ExpectedPrice)
	assert.Equal(t, r1.CI95, r2.CI95)
	assert.Equal(t, r1.ProbUp, r2.ProbUp)
}

func TestSimulateOverflow(t *testing.T) {
	// a 400 log-return per day compounds past float64 range within two days
	sim, states := testSimulator(t, []float64{400, 400, 400})

	_, err := sim.Simulate(context.Background(), 100, states, SimConfig{HorizonDays: 3, Paths: 10, Seed: 1})
	require.ErrorIs(t, err, ErrNumericOverflow)
}

func TestSimulateDeadlinePartial(t *testing.T) {
	sim, states := testSimulator(t, []float64{-0.01, 0, 0.01})

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	res, err := sim.Simulate(ctx, 100, states, SimConfig{HorizonDays: 50, Paths: 200000, Seed: 3, Workers: 2})
	if err != nil {
		// nothing completed before expiry, also acceptable
		return
	}
	assert.True(t, res.Partial)
	assert.Less(t, res.Completed, 200000)
	assert.Positive(t, res.Completed)
}

func TestSimulateInvalidInputs(t *testing.T) {
	sim, states := testSimulator(t, []float64{-0.01, 0, 0.01})

	_, err := sim.Simulate(context.Background(), -5, states, SimConfig{HorizonDays: 1})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = sim.Simulate(context.Background(), 100, states, SimConfig{HorizonDays: -1})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestNewSimulatorValidation(t *testing.T) {
	e := trainedEnsemble(t, alternatingStates(100), 3, []int{1})

	_, err := NewSimulator(e, []float64{0.01})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = NewSimulator(nil, []float64{0.01, 0.02, 0.03})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}
