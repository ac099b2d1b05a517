package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarkovCast/internal/domain/models"
	pkgcache "MarkovCast/pkg/cache"
)

type fakeForecaster struct {
	backtestErr error
}

func (f *fakeForecaster) Forecast(_ context.Context, _ []float64, req *models.ForecastRequest) (*models.PredictionResult, error) {
	return &models.PredictionResult{Symbol: req.Symbol}, nil
}

func (f *fakeForecaster) States(_ context.Context, _ []float64, req *models.StatesRequest) (*models.StateReport, error) {
	return &models.StateReport{Symbol: req.Symbol}, nil
}

func (f *fakeForecaster) Backtest(_ context.Context, _ []float64, req *models.BacktestRequest) (*models.BacktestResult, error) {
	if f.backtestErr != nil {
		return nil, f.backtestErr
	}
	return &models.BacktestResult{Symbol: req.Symbol, Steps: 42}, nil
}

func (f *fakeForecaster) OptimizeWeights(_ context.Context, _ []float64, req *models.WeightsRequest) (*models.WeightReport, error) {
	return &models.WeightReport{Symbol: req.Symbol}, nil
}

type fakeArchive struct {
	reports map[string]*models.BacktestResult
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{reports: make(map[string]*models.BacktestResult)}
}

func (f *fakeArchive) SaveReport(_ context.Context, report *models.BacktestResult) error {
	f.reports[report.ID] = report
	return nil
}

func (f *fakeArchive) GetReport(_ context.Context, id string) (*models.BacktestResult, error) {
	return f.reports[id], nil
}

type fakeQueue struct {
	published []string
}

func (f *fakeQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	f.published = append(f.published, msgType)
	return nil
}

func backtestFixture(t *testing.T, svcErr error) (*BacktestUseCase, *fakeArchive, *fakeQueue) {
	t.Helper()
	loader := NewPriceLoader(&fakeStore{candles: dailyCandles(300, 100)}, nil, nil, nil)
	archive := newFakeArchive()
	q := &fakeQueue{}
	uc := NewBacktestUseCase(loader, &fakeForecaster{backtestErr: svcErr}, archive, q, pkgcache.NewMemoryCache(), nil)
	return uc, archive, q
}

func TestBacktestRunSync(t *testing.T) {
	uc, _, _ := backtestFixture(t, nil)
	res, err := uc.Run(context.Background(), &models.BacktestRequest{Symbol: "AAPL", Lookback: 250})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Steps)
}

func TestBacktestEnqueueAndStatus(t *testing.T) {
	uc, _, q := backtestFixture(t, nil)
	ctx := context.Background()

	st, err := uc.Enqueue(ctx, &models.BacktestRequest{Symbol: "AAPL", Lookback: 250})
	require.NoError(t, err)
	assert.Equal(t, "queued", st.Status)
	assert.Equal(t, []string{BacktestJobType}, q.published)

	report, status, err := uc.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Nil(t, report)
	require.NotNil(t, status)
	assert.Equal(t, "queued", status.Status)
}

func TestBacktestExecuteArchivesReport(t *testing.T) {
	uc, archive, _ := backtestFixture(t, nil)
	ctx := context.Background()

	payload := &BacktestJobPayload{
		ID:      "aapl-1",
		Request: models.BacktestRequest{Symbol: "AAPL", Lookback: 250},
	}
	require.NoError(t, uc.Execute(ctx, payload))

	report, status, err := uc.Get(ctx, "aapl-1")
	require.NoError(t, err)
	assert.Nil(t, status, "finished jobs resolve to the archived report")
	require.NotNil(t, report)
	assert.Equal(t, "aapl-1", report.ID)
	assert.Contains(t, archive.reports, "aapl-1")
}

func TestBacktestExecuteFailureMarksStatus(t *testing.T) {
	uc, _, _ := backtestFixture(t, fmt.Errorf("degenerate window"))
	ctx := context.Background()

	payload := &BacktestJobPayload{
		ID:      "aapl-2",
		Request: models.BacktestRequest{Symbol: "AAPL", Lookback: 250},
	}
	require.Error(t, uc.Execute(ctx, payload))

	report, status, err := uc.Get(ctx, "aapl-2")
	require.NoError(t, err)
	assert.Nil(t, report)
	require.NotNil(t, status)
	assert.Equal(t, "failed", status.Status)
	assert.Contains(t, status.Error, "degenerate")
}

func TestBacktestGetUnknownID(t *testing.T) {
	uc, _, _ := backtestFixture(t, nil)
	report, status, err := uc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Nil(t, status)
}
