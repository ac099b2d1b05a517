package usecase

import (
	"context"

	"MarkovCast/internal/domain/models"
	domsvc "MarkovCast/internal/domain/service"
	applogger "MarkovCast/pkg/logger"
)

// ForecastUseCase loads a price series and runs the forecasting engine on it.
type ForecastUseCase struct {
	loader *PriceLoader
	svc    domsvc.Forecaster
	l      *applogger.Logger
}

func NewForecastUseCase(loader *PriceLoader, svc domsvc.Forecaster, l *applogger.Logger) *ForecastUseCase {
	return &ForecastUseCase{loader: loader, svc: svc, l: l}
}

func (uc *ForecastUseCase) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.PredictionResult, error) {
	prices, err := uc.loader.DailyCloses(ctx, req.Symbol, req.Lookback)
	if err != nil {
		return nil, err
	}
	res, err := uc.svc.Forecast(ctx, prices, req)
	if err != nil {
		return nil, err
	}
	if uc.l != nil {
		uc.l.Info("forecast generated",
			applogger.String("symbol", req.Symbol),
			applogger.Int("horizon", req.Horizon),
			applogger.String("signal", res.Recommendation.Signal),
		)
	}
	return res, nil
}

func (uc *ForecastUseCase) States(ctx context.Context, req *models.StatesRequest) (*models.StateReport, error) {
	prices, err := uc.loader.DailyCloses(ctx, req.Symbol, req.Lookback)
	if err != nil {
		return nil, err
	}
	return uc.svc.States(ctx, prices, req)
}

func (uc *ForecastUseCase) OptimizeWeights(ctx context.Context, req *models.WeightsRequest) (*models.WeightReport, error) {
	prices, err := uc.loader.DailyCloses(ctx, req.Symbol, req.Lookback)
	if err != nil {
		return nil, err
	}
	rep, err := uc.svc.OptimizeWeights(ctx, prices, req)
	if err != nil {
		return nil, err
	}
	if uc.l != nil {
		uc.l.Info("ensemble weights optimized",
			applogger.String("symbol", req.Symbol),
			applogger.String("objective", rep.Objective),
			applogger.Float64("score", rep.Score),
		)
	}
	return rep, nil
}
