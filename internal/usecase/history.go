package usecase

import (
	"context"
	"fmt"
	"time"

	"MarkovCast/internal/domain/models"
	domrepo "MarkovCast/internal/domain/repository"
	"MarkovCast/internal/services/features"
)

const historyDateLayout = "2006-01-02"

// HistoryUseCase serves stored daily bars for dashboard queries.
type HistoryUseCase struct {
	loader *PriceLoader
}

func NewHistoryUseCase(loader *PriceLoader) *HistoryUseCase {
	return &HistoryUseCase{loader: loader}
}

type HistoryResult struct {
	Symbol             string          `json:"symbol"`
	From               time.Time       `json:"from"`
	To                 time.Time       `json:"to"`
	Count              int             `json:"count"`
	RealizedVolatility float64         `json:"realized_volatility"`
	Candles            []models.Candle `json:"candles"`
}

func (uc *HistoryUseCase) GetDailyBars(ctx context.Context, req *models.HistoryRequest) (*HistoryResult, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	to := time.Now()
	from := to.AddDate(-2, 0, 0)
	var err error
	if req.From != "" {
		if from, err = time.Parse(historyDateLayout, req.From); err != nil {
			return nil, fmt.Errorf("parse from: %w", err)
		}
	}
	if req.To != "" {
		if to, err = time.Parse(historyDateLayout, req.To); err != nil {
			return nil, fmt.Errorf("parse to: %w", err)
		}
	}
	if from.After(to) {
		return nil, fmt.Errorf("from must be <= to")
	}
	from, to = features.AlignFromTo(from, to, string(domrepo.TF1d))

	candles, err := uc.loader.Candles(ctx, req.Symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get daily bars: %w", err)
	}
	if req.Limit > 0 && len(candles) > req.Limit {
		candles = candles[len(candles)-req.Limit:]
	}

	rets := features.ComputeLogReturns(candles)
	window := 20
	if len(rets) < window {
		window = len(rets)
	}
	vol := features.RealizedVolatility(rets, window, features.BarsPerYearForTF(string(domrepo.TF1d)))

	return &HistoryResult{
		Symbol:             req.Symbol,
		From:               from,
		To:                 to,
		Count:              len(candles),
		RealizedVolatility: vol,
		Candles:            candles,
	}, nil
}
