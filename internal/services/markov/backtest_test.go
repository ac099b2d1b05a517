package markov

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// risingPrices compounds strictly positive, varying daily returns.
func risingPrices(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]float64, n)
	prices[0] = 100
	for i := 1; i < n; i++ {
		r := 0.001 + rng.Float64()*0.02
		prices[i] = prices[i-1] * math.Exp(r)
	}
	return prices
}

func randomWalkPrices(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]float64, n)
	prices[0] = 100
	for i := 1; i < n; i++ {
		prices[i] = prices[i-1] * math.Exp(rng.NormFloat64()*0.02)
	}
	return prices
}

func TestBacktestMonotonicSeries(t *testing.T) {
	prices := risingPrices(400, 1)

	report, err := Backtest(context.Background(), prices, BacktestConfig{
		States:      3,
		MinLookback: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.DirectionAccuracy,
		"every return is positive, every bucket mean is positive, direction must always match")
	assert.False(t, report.Partial)
	assert.Equal(t, report.Windows, report.CompletedWindows)
}

func TestBacktestConstantSeries(t *testing.T) {
	prices := make([]float64, 300)
	for i := range prices {
		prices[i] = 100
	}

	report, err := Backtest(context.Background(), prices, BacktestConfig{
		States:      3,
		MinLookback: 100,
	})
	require.NoError(t, err)

	// flat training windows degrade to flat forecasts; zero return counted
	// as a matched non-up direction
	assert.Equal(t, 1.0, report.DirectionAccuracy)
	assert.False(t, math.IsNaN(report.DirectionAccuracy))
	assert.False(t, math.IsNaN(report.R2))
	assert.NotNil(t, report.Trading)
	assert.Zero(t, report.Trading.Trades)
}

func TestBacktestRandomWalkMetrics(t *testing.T) {
	prices := randomWalkPrices(500, 2)

	report, err := Backtest(context.Background(), prices, BacktestConfig{
		States:       5,
		MinLookback:  200,
		RetrainEvery: 25,
	})
	require.NoError(t, err)

	assert.Len(t, report.Steps, len(prices)-1-200)
	assert.GreaterOrEqual(t, report.DirectionAccuracy, 0.0)
	assert.LessOrEqual(t, report.DirectionAccuracy, 1.0)
	assert.Positive(t, report.MAE)
	assert.Positive(t, report.RMSE)
	assert.GreaterOrEqual(t, report.RMSE, report.MAE)
	require.NotNil(t, report.Baseline)
	assert.Equal(t, 50.0, report.Baseline.RandomBaseline)
	assert.InDelta(t, report.DirectionAccuracy*100, report.Baseline.ModelAccuracy, 1e-9)
}

func TestBacktestNoLookahead(t *testing.T) {
	// identical prefixes must produce identical predictions for the prefix
	// steps regardless of what follows
	base := randomWalkPrices(320, 3)

	alt := make([]float64, len(base))
	copy(alt, base)
	for i := 300; i < len(alt); i++ {
		alt[i] = alt[i-1] * 1.05
	}

	cfg := BacktestConfig{States: 3, MinLookback: 150, RetrainEvery: 50, Workers: 1}
	r1, err := Backtest(context.Background(), base, cfg)
	require.NoError(t, err)
	r2, err := Backtest(context.Background(), alt, cfg)
	require.NoError(t, err)

	for i := 0; i < 140; i++ { // steps 150..289 predate the divergence at 300
		assert.Equal(t, r1.Steps[i].PredictedReturn, r2.Steps[i].PredictedReturn,
			"prediction at step %d changed when only future data changed", r1.Steps[i].Index)
	}
}

func TestBacktestInsufficientData(t *testing.T) {
	_, err := Backtest(context.Background(), risingPrices(50, 4), BacktestConfig{MinLookback: 200})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestBacktestDeadlinePartial(t *testing.T) {
	prices := randomWalkPrices(5000, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	report, err := Backtest(ctx, prices, BacktestConfig{States: 5, MinLookback: 200, RetrainEvery: 10})
	if err != nil {
		// no window finished before expiry, also acceptable
		return
	}
	assert.True(t, report.Partial)
	assert.Less(t, report.CompletedWindows, report.Windows)
}

func TestBacktestTradingSimulation(t *testing.T) {
	prices := risingPrices(400, 6)

	report, err := Backtest(context.Background(), prices, BacktestConfig{
		States:      3,
		MinLookback: 100,
	})
	require.NoError(t, err)
	require.NotNil(t, report.Trading)

	tr := report.Trading
	assert.Equal(t, float64(DefaultInitialCapital), tr.InitialCapital)
	assert.Positive(t, tr.Trades, "a rising market must trigger long entries")
	assert.Greater(t, tr.FinalCapital, tr.InitialCapital)
	assert.Equal(t, 100.0, tr.WinRatePct)
	assert.Zero(t, tr.Losses)
	assert.Zero(t, tr.ProfitFactor, "no losing trades leaves the factor unreported")
	assert.Zero(t, tr.MaxDrawdownPct)
}

func TestBacktestConfigValidation(t *testing.T) {
	prices := risingPrices(300, 7)

	_, err := Backtest(context.Background(), prices, BacktestConfig{States: 1})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = Backtest(context.Background(), prices, BacktestConfig{Method: "fourier"})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = Backtest(context.Background(), prices, BacktestConfig{Orders: []int{0}})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
}
