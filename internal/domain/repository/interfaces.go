package repository

import (
	"context"
	"time"

	"MarkovCast/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Tick, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// HistorySource fetches historical daily bars from the market-data provider.
type HistorySource interface {
	FetchDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}

// CandleWriter persists daily bars fetched from the history source.
type CandleWriter interface {
	StoreDailyCandles(ctx context.Context, candles []models.Candle) error
}

// BacktestArchive stores finished walk-forward reports keyed by job id.
type BacktestArchive interface {
	SaveReport(ctx context.Context, report *models.BacktestResult) error
	GetReport(ctx context.Context, id string) (*models.BacktestResult, error)
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
