package markov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alternatingStates(n int) []State {
	out := make([]State, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 0
		} else {
			out[i] = 2
		}
	}
	return out
}

func TestChainDistributionSumsToOne(t *testing.T) {
	states := alternatingStates(200)
	chain, err := NewChain(2, 3)
	require.NoError(t, err)
	require.NoError(t, chain.Train(states))

	histories := [][]State{
		{0, 2}, {2, 0},
		{1, 1}, // unseen context, served via back-off
	}
	for _, h := range histories {
		dist, err := chain.Distribution(h)
		require.NoError(t, err)
		sum := 0.0
		for _, p := range dist {
			assert.Positive(t, p, "smoothing must leave no zero entry")
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "history %v", h)
	}
}

func TestChainAlternatingSeries(t *testing.T) {
	// states strictly alternate 0 and 2; after seeing 0 the chain should put
	// nearly all mass on 2 and almost none on the never-visited state 1
	states := alternatingStates(400)
	chain, err := NewChain(1, 3)
	require.NoError(t, err)
	require.NoError(t, chain.Train(states))

	dist, err := chain.Distribution([]State{0})
	require.NoError(t, err)
	assert.Greater(t, dist[0]+dist[2], 0.9)
	assert.Less(t, dist[1], 0.05)
	assert.Greater(t, dist[2], 0.9)
}

func TestChainBackOffToMarginal(t *testing.T) {
	states := []State{0, 1, 0, 1, 0, 1, 0, 1, 2, 0, 1, 0}
	chain, err := NewChain(3, 3)
	require.NoError(t, err)
	require.NoError(t, chain.Train(states))

	// context unseen at orders 3 and 2, resolved by a lower order
	dist, err := chain.Distribution([]State{2, 2, 2})
	require.NoError(t, err)

	sum := 0.0
	for _, p := range dist {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, dist[0], dist[2])
}

func TestChainShortHistoryBacksOff(t *testing.T) {
	states := alternatingStates(50)
	chain, err := NewChain(3, 3)
	require.NoError(t, err)
	require.NoError(t, chain.Train(states))

	dist, err := chain.Distribution([]State{0})
	require.NoError(t, err)
	assert.Len(t, dist, 3)
}

func TestChainTrainErrors(t *testing.T) {
	chain, err := NewChain(3, 3)
	require.NoError(t, err)

	err = chain.Train([]State{0, 1})
	require.ErrorIs(t, err, ErrInsufficientData)

	err = chain.Train([]State{0, 1, 2, 5})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestChainUntrained(t *testing.T) {
	chain, err := NewChain(1, 3)
	require.NoError(t, err)

	_, err = chain.Distribution([]State{0})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestNewChainValidation(t *testing.T) {
	_, err := NewChain(-1, 3)
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = NewChain(1, 1)
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}
