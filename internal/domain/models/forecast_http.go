package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Horizon  int    `query:"horizon" json:"horizon" default:"30" validate:"gte=0,lte=365"`
	Paths    int    `query:"paths" json:"paths" default:"2000" validate:"gte=100,lte=100000"`
	States   int    `query:"states" json:"states" default:"5" validate:"gte=2,lte=10"`
	Method   string `query:"method" json:"method" default:"returns" validate:"oneof=returns volatility kmeans hybrid"`
	Lookback int    `query:"lookback" json:"lookback" default:"500" validate:"gte=61,lte=5000"`
	Seed     int64  `query:"seed" json:"seed"`
}

type StatesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	States   int    `query:"states" json:"states" default:"5" validate:"gte=2,lte=10"`
	Method   string `query:"method" json:"method" default:"returns" validate:"oneof=returns volatility kmeans hybrid"`
	Lookback int    `query:"lookback" json:"lookback" default:"500" validate:"gte=61,lte=5000"`
}

type BacktestRequest struct {
	Symbol        string  `query:"symbol" json:"symbol" validate:"required"`
	States        int     `query:"states" json:"states" default:"5" validate:"gte=2,lte=10"`
	Method        string  `query:"method" json:"method" default:"returns" validate:"oneof=returns volatility kmeans hybrid"`
	Lookback      int     `query:"lookback" json:"lookback" default:"1000" validate:"gte=100,lte=5000"`
	MinLookback   int     `query:"min_lookback" json:"min_lookback" default:"200" validate:"gte=60,lte=2000"`
	RetrainEvery  int     `query:"retrain_every" json:"retrain_every" default:"20" validate:"gte=1,lte=250"`
	ProbThreshold float64 `query:"prob_threshold" json:"prob_threshold" default:"0.5" validate:"gte=0,lte=1"`
}

type BacktestStatusRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type WeightsRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Objective string `query:"objective" json:"objective" default:"accuracy" validate:"oneof=accuracy sharpe return"`
	States    int    `query:"states" json:"states" default:"5" validate:"gte=2,lte=10"`
	Method    string `query:"method" json:"method" default:"returns" validate:"oneof=returns volatility kmeans hybrid"`
	Lookback  int    `query:"lookback" json:"lookback" default:"500" validate:"gte=61,lte=5000"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"` // YYYY-MM-DD, defaults to two years back
	To     string `query:"to" json:"to"`     // YYYY-MM-DD, defaults to today
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}
