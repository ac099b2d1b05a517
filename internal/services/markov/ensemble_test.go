package markov

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedEnsemble(t *testing.T, states []State, k int, orders []int) *Ensemble {
	t.Helper()
	chains := make([]*Chain, 0, len(orders))
	for _, o := range orders {
		c, err := NewChain(o, k)
		require.NoError(t, err)
		require.NoError(t, c.Train(states))
		chains = append(chains, c)
	}
	e, err := NewEnsemble(chains)
	require.NoError(t, err)
	return e
}

func TestEnsembleUniformInit(t *testing.T) {
	e := trainedEnsemble(t, alternatingStates(100), 3, []int{1, 2, 3})

	ws := e.Weights()
	require.Len(t, ws, 3)
	sum := 0.0
	for _, w := range ws {
		assert.InDelta(t, 1.0/3.0, w, 1e-12)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEnsembleDistributionNormalized(t *testing.T) {
	e := trainedEnsemble(t, alternatingStates(200), 3, []int{1, 2})

	dist, err := e.Distribution([]State{0, 2, 0})
	require.NoError(t, err)
	sum := 0.0
	for _, p := range dist {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEnsembleAlternatingSeries(t *testing.T) {
	e := trainedEnsemble(t, alternatingStates(400), 3, []int{1})

	dist, err := e.Distribution([]State{0})
	require.NoError(t, err)
	assert.Greater(t, dist[0]+dist[2], 0.9)
	assert.Less(t, dist[1], 0.05)
}

func TestSetWeightsValidation(t *testing.T) {
	e := trainedEnsemble(t, alternatingStates(100), 3, []int{1, 2})

	require.NoError(t, e.SetWeights([]float64{0.3, 0.7}))
	assert.Equal(t, []float64{0.3, 0.7}, e.Weights())

	err := e.SetWeights([]float64{0.5, 0.6})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	err = e.SetWeights([]float64{-0.1, 1.1})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	err = e.SetWeights([]float64{1})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestOptimizeWeightsInvariants(t *testing.T) {
	returns := syntheticReturns(400, 7)
	d, err := FitDiscretizer(returns, 3, MethodReturns)
	require.NoError(t, err)
	states := d.TransformAll(returns)

	for _, obj := range []Objective{ObjectiveAccuracy, ObjectiveSharpe, ObjectiveReturn} {
		e := trainedEnsemble(t, states, 3, []int{1, 2, 3})
		ws, _, err := e.OptimizeWeights(context.Background(), states, returns, d.StateReturns(), obj)
		require.NoError(t, err, "objective %s", obj)

		sum := 0.0
		for _, w := range ws {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "objective %s", obj)
		assert.Equal(t, ws, e.Weights(), "ensemble must adopt the winner")
	}
}

func TestOptimizeWeightsDeterministic(t *testing.T) {
	returns := syntheticReturns(400, 11)
	d, err := FitDiscretizer(returns, 3, MethodReturns)
	require.NoError(t, err)
	states := d.TransformAll(returns)

	e1 := trainedEnsemble(t, states, 3, []int{1, 2, 3})
	w1, s1, err := e1.OptimizeWeights(context.Background(), states, returns, d.StateReturns(), ObjectiveAccuracy)
	require.NoError(t, err)

	e2 := trainedEnsemble(t, states, 3, []int{1, 2, 3})
	w2, s2, err := e2.OptimizeWeights(context.Background(), states, returns, d.StateReturns(), ObjectiveAccuracy)
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
	assert.Equal(t, s1, s2)
}

func TestOptimizeWeightsCancelled(t *testing.T) {
	returns := syntheticReturns(200, 13)
	d, err := FitDiscretizer(returns, 3, MethodReturns)
	require.NoError(t, err)
	states := d.TransformAll(returns)
	e := trainedEnsemble(t, states, 3, []int{1, 2})
	before := e.Weights()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = e.OptimizeWeights(ctx, states, returns, d.StateReturns(), ObjectiveAccuracy)
	require.Error(t, err)
	assert.Equal(t, before, e.Weights(), "weights untouched after cancellation")
}

func TestParseObjective(t *testing.T) {
	o, err := ParseObjective("")
	require.NoError(t, err)
	assert.Equal(t, ObjectiveAccuracy, o)

	_, err = ParseObjective("alpha")
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestSimplexGridLexicographic(t *testing.T) {
	grid := simplexGrid(2, 10)
	require.Len(t, grid, 11)
	assert.Equal(t, []float64{0, 1}, grid[0])
	assert.Equal(t, []float64{1, 0}, grid[len(grid)-1])

	grid3 := simplexGrid(3, 10)
	assert.Len(t, grid3, 66)
	for _, w := range grid3 {
		sum := 0.0
		for _, x := range w {
			sum += x
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}
