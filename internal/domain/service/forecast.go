package service

import (
	"context"

	"MarkovCast/internal/domain/models"
)

// Forecaster runs the in-process forecasting engine on a daily closing-price
// series. Implementations own no state between calls; every call trains a
// fresh model on the prices it is given.
type Forecaster interface {
	Forecast(ctx context.Context, prices []float64, req *models.ForecastRequest) (*models.PredictionResult, error)
	States(ctx context.Context, prices []float64, req *models.StatesRequest) (*models.StateReport, error)
	Backtest(ctx context.Context, prices []float64, req *models.BacktestRequest) (*models.BacktestResult, error)
	OptimizeWeights(ctx context.Context, prices []float64, req *models.WeightsRequest) (*models.WeightReport, error)
}
