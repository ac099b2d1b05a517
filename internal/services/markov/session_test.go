package markov

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedSession(t *testing.T, n int, seed int64, cfg Config) *Session {
	t.Helper()
	s, err := Train(randomWalkPrices(n, seed), cfg)
	require.NoError(t, err)
	return s
}

func TestTrainDefaults(t *testing.T) {
	s := trainedSession(t, 300, 1, Config{})

	cfg := s.Config()
	assert.Equal(t, DefaultStates, cfg.States)
	assert.Equal(t, MethodReturns, cfg.Method)
	assert.Equal(t, DefaultOrders, cfg.Orders)
	assert.Equal(t, DefaultSmoothing, cfg.Smoothing)
	assert.Equal(t, 299, s.Observations())
	assert.Len(t, s.Weights(), len(DefaultOrders))
}

func TestTrainInsufficientData(t *testing.T) {
	_, err := Train(randomWalkPrices(30, 2), Config{})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainInvalidConfig(t *testing.T) {
	prices := randomWalkPrices(300, 3)

	_, err := Train(prices, Config{Orders: []int{1, 1}})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = Train(prices, Config{Method: "spline"})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestTrainRejectsNonPositivePrices(t *testing.T) {
	prices := randomWalkPrices(100, 4)
	prices[50] = 0

	_, err := Train(prices, Config{})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestLogReturns(t *testing.T) {
	rs, err := LogReturns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.InDelta(t, math.Log(1.1), rs[0], 1e-12)
	assert.InDelta(t, math.Log(0.9), rs[1], 1e-12)

	_, err = LogReturns([]float64{100})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestSessionPredict(t *testing.T) {
	s := trainedSession(t, 400, 5, Config{States: 3, Orders: []int{1, 2}})

	res, err := s.Predict(context.Background(), SimConfig{HorizonDays: 7, Paths: 1000, Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, s.CurrentPrice(), res.CurrentPrice)
	assert.True(t, res.ProbUpDefined)
	assert.Len(t, res.Days, 7)
}

func TestSessionNextDistribution(t *testing.T) {
	s := trainedSession(t, 400, 6, Config{States: 3})

	dist, err := s.NextDistribution()
	require.NoError(t, err)
	require.Len(t, dist, 3)
	sum := 0.0
	for _, p := range dist {
		assert.Positive(t, p)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSessionTransitionMatrix(t *testing.T) {
	s := trainedSession(t, 500, 7, Config{States: 5})

	matrix, err := s.TransitionMatrix()
	require.NoError(t, err)
	require.Len(t, matrix, 5)
	for i, row := range matrix {
		require.Len(t, row, 5)
		sum := 0.0
		for _, p := range row {
			assert.Positive(t, p)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestSessionStateStats(t *testing.T) {
	s := trainedSession(t, 500, 8, Config{States: 3})

	stats := s.StateStats()
	require.Len(t, stats, 3)
	totalFreq := 0.0
	totalCount := 0
	for i, st := range stats {
		assert.Equal(t, i, st.State)
		assert.NotEmpty(t, st.Label)
		assert.Positive(t, st.Count)
		totalFreq += st.Frequency
		totalCount += st.Count
	}
	assert.Equal(t, s.Observations(), totalCount)
	assert.InDelta(t, 1.0, totalFreq, 1e-9)
	assert.Equal(t, "Down", stats[0].Label)
	assert.Equal(t, "Up", stats[2].Label)
}

func TestSessionOptimizeWeights(t *testing.T) {
	s := trainedSession(t, 500, 9, Config{States: 3, Orders: []int{1, 2, 3}})

	ws, score, err := s.OptimizeWeights(context.Background(), ObjectiveAccuracy)
	require.NoError(t, err)
	require.Len(t, ws, 3)
	assert.Equal(t, ws, s.Weights())
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestRecommendSignals(t *testing.T) {
	cases := []struct {
		name   string
		probUp float64
		expRet float64
		want   Signal
	}{
		{"strong buy", 0.70, 0.02, SignalStrongBuy},
		{"buy", 0.60, 0.008, SignalBuy},
		{"hold", 0.50, 0.001, SignalHold},
		{"sell", 0.40, -0.008, SignalSell},
		{"strong sell", 0.30, -0.02, SignalStrongSell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Recommend(&SimResult{
				ProbUpDefined:  true,
				ProbUp:         tc.probUp,
				ExpectedReturn: tc.expRet,
				ReturnStd:      0.015,
			})
			assert.Equal(t, tc.want, rec.Signal)
			assert.NotEmpty(t, rec.Reasoning)
		})
	}
}

func TestRecommendUndefinedDirectionHolds(t *testing.T) {
	rec := Recommend(&SimResult{ProbUpDefined: false, ProbUp: math.NaN()})
	assert.Equal(t, SignalHold, rec.Signal)
	assert.Equal(t, "Low", rec.Confidence)

	rec = Recommend(nil)
	assert.Equal(t, SignalHold, rec.Signal)
}

func TestRecommendRiskAdjusted(t *testing.T) {
	rec := Recommend(&SimResult{
		ProbUpDefined:  true,
		ProbUp:         0.70,
		ExpectedReturn: 0.02,
		ReturnStd:      0.04,
	})
	assert.InDelta(t, 0.5, rec.RiskAdjustedReturn, 1e-12)
	assert.Contains(t, rec.Reasoning, "High volatility")
}
