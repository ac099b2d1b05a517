package markov

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticReturns(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * 0.02
	}
	return out
}

func TestFitDiscretizerPartitionsAllStates(t *testing.T) {
	returns := syntheticReturns(500, 1)

	for _, k := range []int{2, 3, 5, 7} {
		d, err := FitDiscretizer(returns, k, MethodReturns)
		require.NoError(t, err, "k=%d", k)
		require.Equal(t, k, d.NumStates())

		for s := 0; s < k; s++ {
			assert.Positive(t, d.StateCount(State(s)), "state %d empty for k=%d", s, k)
		}
		// representative returns are ascending with the state index
		for s := 1; s < k; s++ {
			assert.Greater(t, d.StateReturn(State(s)), d.StateReturn(State(s-1)),
				"states not ordered by representative return at k=%d", k)
		}
	}
}

func TestFitDiscretizerAllMethods(t *testing.T) {
	returns := syntheticReturns(400, 2)

	for _, m := range []Method{MethodReturns, MethodVolatility, MethodKMeans, MethodHybrid} {
		d, err := FitDiscretizer(returns, 5, m)
		require.NoError(t, err, "method %s", m)
		assert.Equal(t, m, d.Method())
		assert.Len(t, d.Boundaries(), 4)
	}
}

func TestTransformTiesGoToLowerState(t *testing.T) {
	// four distinct values, two states: the boundary is the median
	returns := []float64{-0.02, -0.01, 0.01, 0.02}
	d, err := FitDiscretizer(returns, 2, MethodReturns)
	require.NoError(t, err)

	boundary := d.Boundaries()[0]
	assert.Equal(t, State(0), d.Transform(boundary))
	assert.Equal(t, State(1), d.Transform(boundary+1e-9))
}

func TestTransformClampsOutOfRange(t *testing.T) {
	returns := syntheticReturns(300, 3)
	d, err := FitDiscretizer(returns, 5, MethodReturns)
	require.NoError(t, err)

	assert.Equal(t, State(0), d.Transform(-100))
	assert.Equal(t, State(4), d.Transform(100))
}

func TestTransformIdempotent(t *testing.T) {
	returns := syntheticReturns(300, 4)
	d, err := FitDiscretizer(returns, 5, MethodKMeans)
	require.NoError(t, err)

	for _, r := range []float64{-0.05, -0.001, 0, 0.0013, 0.08} {
		assert.Equal(t, d.Transform(r), d.Transform(r))
	}
}

func TestFitDiscretizerDegenerateInputs(t *testing.T) {
	t.Run("zero variance", func(t *testing.T) {
		flat := make([]float64, 100)
		_, err := FitDiscretizer(flat, 3, MethodReturns)
		require.ErrorIs(t, err, ErrDegenerateDistribution)
	})

	t.Run("too few distinct values", func(t *testing.T) {
		returns := make([]float64, 100)
		for i := range returns {
			if i%2 == 0 {
				returns[i] = 0.01
			} else {
				returns[i] = -0.01
			}
		}
		_, err := FitDiscretizer(returns, 3, MethodReturns)
		require.ErrorIs(t, err, ErrDegenerateDistribution)
	})

	t.Run("too few observations", func(t *testing.T) {
		_, err := FitDiscretizer([]float64{0.01, -0.01}, 5, MethodReturns)
		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("invalid state count", func(t *testing.T) {
		_, err := FitDiscretizer(syntheticReturns(100, 5), 1, MethodReturns)
		require.ErrorIs(t, err, ErrUnsupportedConfiguration)
	})
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("kmeans")
	require.NoError(t, err)
	assert.Equal(t, MethodKMeans, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodReturns, m)

	_, err = ParseMethod("wavelet")
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestStateLabels(t *testing.T) {
	returns := syntheticReturns(300, 6)

	d3, err := FitDiscretizer(returns, 3, MethodReturns)
	require.NoError(t, err)
	assert.Equal(t, []string{"Down", "Neutral", "Up"}, d3.Labels())

	d5, err := FitDiscretizer(returns, 5, MethodReturns)
	require.NoError(t, err)
	assert.Equal(t, "Strong Down", d5.Label(0))
	assert.Equal(t, "Strong Up", d5.Label(4))
}
