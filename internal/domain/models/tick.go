package models

import "time"

// Tick is a single traded price observation from the market stream.
type Tick struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}

// Candle represents an OHLCV record. Daily bars feed model training;
// intraday buckets back the live dashboard queries.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	OrgID  string
}
