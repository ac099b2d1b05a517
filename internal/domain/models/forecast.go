package models

import "time"

// DailyForecast is the per-day slice of a Monte Carlo price forecast.
type DailyForecast struct {
	Day           int        `json:"day"`
	ExpectedPrice float64    `json:"expected_price"`
	MedianPrice   float64    `json:"median_price"`
	CI68          [2]float64 `json:"ci68"`
	CI95          [2]float64 `json:"ci95"`
}

// Recommendation is a trading signal with its supporting numbers.
type Recommendation struct {
	Signal             string  `json:"signal"`
	Confidence         string  `json:"confidence"`
	ExpectedReturnPct  float64 `json:"expected_return_pct"`
	ProbabilityUpPct   float64 `json:"probability_up_pct"`
	RiskAdjustedReturn float64 `json:"risk_adjusted_return"`
	Reasoning          string  `json:"reasoning"`
}

// PredictionResult is the full payload of a forecast run.
// ProbUp/ProbDown are nil when the horizon is zero days: the direction is
// undefined there, not fifty-fifty.
type PredictionResult struct {
	Symbol       string    `json:"symbol"`
	GeneratedAt  time.Time `json:"generated_at"`
	HorizonDays  int       `json:"horizon_days"`
	Paths        int       `json:"paths"`
	Completed    int       `json:"completed_paths"`
	Partial      bool      `json:"partial"`
	States       int       `json:"states"`
	Method       string    `json:"method"`
	Observations int       `json:"observations"`
	CurrentState string    `json:"current_state"`

	CurrentPrice      float64    `json:"current_price"`
	ExpectedPrice     float64    `json:"expected_price"`
	MedianPrice       float64    `json:"median_price"`
	PriceStd          float64    `json:"price_std"`
	ExpectedReturnPct float64    `json:"expected_return_pct"`
	ReturnStdPct      float64    `json:"return_std_pct"`
	CI68              [2]float64 `json:"ci68"`
	CI95              [2]float64 `json:"ci95"`

	ProbUp   *float64 `json:"prob_up,omitempty"`
	ProbDown *float64 `json:"prob_down,omitempty"`

	VaR95Pct      float64   `json:"var_95_pct"`
	VaR95Loss     float64   `json:"var_95_loss"`
	CVaR95Pct     float64   `json:"cvar_95_pct"`
	CVaR95Loss    float64   `json:"cvar_95_loss"`
	MaxLossPct    float64   `json:"max_loss_pct"`
	EnsembleOrder []int     `json:"ensemble_orders"`
	Weights       []float64 `json:"weights"`

	Daily          []DailyForecast `json:"daily,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// StateInfo describes one bucket of the fitted return alphabet.
type StateInfo struct {
	State         int     `json:"state"`
	Label         string  `json:"label"`
	Count         int     `json:"count"`
	FrequencyPct  float64 `json:"frequency_pct"`
	MeanReturnPct float64 `json:"mean_return_pct"`
}

// StateReport is the discretizer fit summary with the order-1 transition
// matrix.
type StateReport struct {
	Symbol           string      `json:"symbol"`
	GeneratedAt      time.Time   `json:"generated_at"`
	States           int         `json:"states"`
	Method           string      `json:"method"`
	Observations     int         `json:"observations"`
	CurrentState     string      `json:"current_state"`
	Boundaries       []float64   `json:"boundaries"`
	Stats            []StateInfo `json:"stats"`
	TransitionMatrix [][]float64 `json:"transition_matrix"`
}

// TradingStats summarizes the long/flat trading simulation of a backtest.
type TradingStats struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturnPct float64 `json:"total_return_pct"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRatePct     float64 `json:"win_rate_pct"`
	ProfitFactor   float64 `json:"profit_factor"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// BaselineComparison compares model direction accuracy against naive rules.
type BaselineComparison struct {
	ModelAccuracy    float64 `json:"model_accuracy_pct"`
	RandomBaseline   float64 `json:"random_baseline_pct"`
	AlwaysUpBaseline float64 `json:"always_up_baseline_pct"`
	NaiveBaseline    float64 `json:"naive_baseline_pct"`
	EdgeOverRandom   float64 `json:"edge_over_random_pct"`
}

// BacktestResult is a finished walk-forward evaluation.
type BacktestResult struct {
	ID           string    `json:"id,omitempty"`
	Symbol       string    `json:"symbol"`
	GeneratedAt  time.Time `json:"generated_at"`
	States       int       `json:"states"`
	Method       string    `json:"method"`
	MinLookback  int       `json:"min_lookback"`
	RetrainEvery int       `json:"retrain_every"`

	Steps                int     `json:"steps"`
	Windows              int     `json:"windows"`
	CompletedWindows     int     `json:"completed_windows"`
	Partial              bool    `json:"partial"`
	DirectionAccuracyPct float64 `json:"direction_accuracy_pct"`
	MAE                  float64 `json:"mae"`
	MAEPct               float64 `json:"mae_pct"`
	RMSE                 float64 `json:"rmse"`
	RMSEPct              float64 `json:"rmse_pct"`
	MAPE                 float64 `json:"mape"`
	R2                   float64 `json:"r2"`
	Correlation          float64 `json:"correlation"`
	ReturnMAE            float64 `json:"return_mae"`

	Trading  *TradingStats       `json:"trading,omitempty"`
	Baseline *BaselineComparison `json:"baseline,omitempty"`
}

// BacktestJobStatus tracks an async backtest through the queue.
type BacktestJobStatus struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Status    string    `json:"status"` // queued | running | done | failed
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WeightReport is the outcome of an ensemble weight optimization.
type WeightReport struct {
	Symbol      string    `json:"symbol"`
	GeneratedAt time.Time `json:"generated_at"`
	Objective   string    `json:"objective"`
	Orders      []int     `json:"orders"`
	Weights     []float64 `json:"weights"`
	Score       float64   `json:"score"`
}
