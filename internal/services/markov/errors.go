package markov

import "errors"

// Sentinel errors returned by the forecasting engine. Callers match them
// with errors.Is; wrapped messages carry the offending sizes or values.
var (
	// ErrInsufficientData signals too few observations to fit or backtest.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateDistribution signals a zero-variance or too-few-distinct-values
	// input to the discretizer.
	ErrDegenerateDistribution = errors.New("degenerate distribution")

	// ErrNumericOverflow signals that simulated path compounding left the
	// representable float64 range.
	ErrNumericOverflow = errors.New("numeric overflow")

	// ErrUnsupportedConfiguration signals an invalid state count, unknown
	// discretization method, bad order set, or non-normalized weights.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
)
