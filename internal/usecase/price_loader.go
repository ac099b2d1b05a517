package usecase

import (
	"context"
	"fmt"
	"time"

	"MarkovCast/internal/domain/models"
	domrepo "MarkovCast/internal/domain/repository"
	applogger "MarkovCast/pkg/logger"
)

// PriceLoader assembles the daily closing-price series a model trains on.
// It reads the ClickHouse store first and falls back to the market-data
// provider when the store holds fewer bars than requested, persisting the
// fetched range for the next caller.
type PriceLoader struct {
	store  domrepo.FeatureStore
	source domrepo.HistorySource
	writer domrepo.CandleWriter
	l      *applogger.Logger
}

func NewPriceLoader(store domrepo.FeatureStore, source domrepo.HistorySource, writer domrepo.CandleWriter, l *applogger.Logger) *PriceLoader {
	return &PriceLoader{store: store, source: source, writer: writer, l: l}
}

// DailyCloses returns up to n daily closing prices ascending by date.
func (p *PriceLoader) DailyCloses(ctx context.Context, symbol string, n int) ([]float64, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	candles, err := p.store.GetLatestNCandles(ctx, symbol, n, domrepo.TF1d)
	if err != nil {
		if p.l != nil {
			p.l.Warn("price loader store read failed, falling back to provider",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		candles = nil
	}

	if len(candles) < n && p.source != nil {
		to := time.Now()
		from := to.AddDate(0, 0, -calendarSpan(n))
		fetched, ferr := p.source.FetchDailyCandles(ctx, symbol, from, to)
		switch {
		case ferr != nil && len(candles) == 0:
			return nil, fmt.Errorf("fetch daily candles %s: %w", symbol, ferr)
		case ferr != nil:
			if p.l != nil {
				p.l.Warn("provider fetch failed, using stored bars",
					applogger.String("symbol", symbol),
					applogger.Int("stored", len(candles)),
					applogger.Error(ferr),
				)
			}
		case len(fetched) > 0:
			if p.writer != nil {
				if werr := p.writer.StoreDailyCandles(ctx, fetched); werr != nil && p.l != nil {
					p.l.Warn("persist fetched bars failed",
						applogger.String("symbol", symbol),
						applogger.Error(werr),
					)
				}
			}
			candles = fetched
		}
	}

	if len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 {
			closes = append(closes, c.Close)
		}
	}
	return closes, nil
}

// Candles returns stored daily bars for an explicit date range.
func (p *PriceLoader) Candles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	return p.store.GetCandles(ctx, symbol, from, to, domrepo.TF1d)
}

// calendarSpan widens a trading-day count to calendar days, capped at ten
// years. Markets trade roughly 252 of 365 days.
func calendarSpan(n int) int {
	span := n*3/2 + 30
	if span > 3650 {
		span = 3650
	}
	return span
}
