package finnhub

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"MarkovCast/internal/domain/models"
	drepo "MarkovCast/internal/domain/repository"
	xhttp "MarkovCast/pkg/http"
)

// RESTClient fetches historical daily candles from the Finnhub REST API.
type RESTClient struct {
	apiKey  string
	baseURL string
	client  *xhttp.Client
}

// NewRESTClient creates a Finnhub history source.
func NewRESTClient(apiKey, baseURL string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// candleResponse is Finnhub's column-oriented candle payload.
type candleResponse struct {
	Status string    `json:"s"` // "ok" | "no_data"
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

// FetchDailyCandles loads daily bars for [from, to], ascending by date.
func (c *RESTClient) FetchDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	var resp candleResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
			"token":      {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if resp.Status == "no_data" {
		return nil, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("finnhub candles %s: status %q", symbol, resp.Status)
	}

	n := len(resp.T)
	if len(resp.C) != n || len(resp.O) != n || len(resp.H) != n || len(resp.L) != n || len(resp.V) != n {
		return nil, fmt.Errorf("finnhub candles %s: ragged columns", symbol)
	}
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Candle{
			Bucket: time.Unix(resp.T[i], 0).UTC().Truncate(24 * time.Hour),
			Symbol: symbol,
			Open:   resp.O[i],
			High:   resp.H[i],
			Low:    resp.L[i],
			Close:  resp.C[i],
			Volume: resp.V[i],
		})
	}
	return out, nil
}

var _ drepo.HistorySource = (*RESTClient)(nil)
