package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarkovCast/internal/domain/models"
	domrepo "MarkovCast/internal/domain/repository"
)

type fakeStore struct {
	candles []models.Candle
	err     error
}

func (f *fakeStore) GetCandles(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Candle
	for _, c := range f.candles {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetLatestNCandles(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candles) > n {
		return f.candles[len(f.candles)-n:], nil
	}
	return f.candles, nil
}

type fakeSource struct {
	candles []models.Candle
	err     error
	calls   int
}

func (f *fakeSource) FetchDailyCandles(_ context.Context, _ string, _, _ time.Time) ([]models.Candle, error) {
	f.calls++
	return f.candles, f.err
}

type fakeWriter struct {
	stored []models.Candle
}

func (f *fakeWriter) StoreDailyCandles(_ context.Context, candles []models.Candle) error {
	f.stored = append(f.stored, candles...)
	return nil
}

func dailyCandles(n int, base float64) []models.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		px := base + float64(i)
		out = append(out, models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Symbol: "AAPL",
			Open:   px, High: px, Low: px, Close: px,
		})
	}
	return out
}

func TestDailyClosesFromStore(t *testing.T) {
	store := &fakeStore{candles: dailyCandles(300, 100)}
	source := &fakeSource{}
	loader := NewPriceLoader(store, source, &fakeWriter{}, nil)

	closes, err := loader.DailyCloses(context.Background(), "AAPL", 250)
	require.NoError(t, err)
	assert.Len(t, closes, 250)
	assert.Zero(t, source.calls, "provider must not be hit when the store has enough bars")
	assert.Equal(t, 100.0+299, closes[len(closes)-1])
}

func TestDailyClosesFallsBackToProvider(t *testing.T) {
	store := &fakeStore{candles: dailyCandles(50, 100)}
	source := &fakeSource{candles: dailyCandles(300, 200)}
	writer := &fakeWriter{}
	loader := NewPriceLoader(store, source, writer, nil)

	closes, err := loader.DailyCloses(context.Background(), "AAPL", 250)
	require.NoError(t, err)
	assert.Len(t, closes, 250)
	assert.Equal(t, 1, source.calls)
	assert.Len(t, writer.stored, 300, "fetched bars must be persisted")
}

func TestDailyClosesProviderErrorKeepsStoredBars(t *testing.T) {
	store := &fakeStore{candles: dailyCandles(50, 100)}
	source := &fakeSource{err: fmt.Errorf("rate limited")}
	loader := NewPriceLoader(store, source, &fakeWriter{}, nil)

	closes, err := loader.DailyCloses(context.Background(), "AAPL", 250)
	require.NoError(t, err)
	assert.Len(t, closes, 50)
}

func TestDailyClosesNoDataAnywhere(t *testing.T) {
	store := &fakeStore{}
	source := &fakeSource{err: fmt.Errorf("no data")}
	loader := NewPriceLoader(store, source, &fakeWriter{}, nil)

	_, err := loader.DailyCloses(context.Background(), "AAPL", 250)
	require.Error(t, err)
}

func TestDailyClosesRequiresSymbol(t *testing.T) {
	loader := NewPriceLoader(&fakeStore{}, &fakeSource{}, &fakeWriter{}, nil)
	_, err := loader.DailyCloses(context.Background(), "", 100)
	require.Error(t, err)
}

func TestDailyClosesFiltersNonPositive(t *testing.T) {
	candles := dailyCandles(10, 100)
	candles[4].Close = 0
	store := &fakeStore{candles: candles}
	loader := NewPriceLoader(store, nil, nil, nil)

	closes, err := loader.DailyCloses(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, closes, 9)
}

func TestCalendarSpan(t *testing.T) {
	assert.Equal(t, 330, calendarSpan(200))
	assert.Equal(t, 3650, calendarSpan(5000), "span is capped at ten years")
}
