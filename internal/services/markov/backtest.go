package markov

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
)

const (
	// DefaultMinLookback is the walk-forward training window length.
	DefaultMinLookback = 200
	// DefaultRetrainEvery is the retrain cadence in steps.
	DefaultRetrainEvery = 20
	// DefaultProbThreshold gates the long/flat trading simulation.
	DefaultProbThreshold = 0.5
	// DefaultInitialCapital seeds the trading simulation.
	DefaultInitialCapital = 10000
)

// BacktestConfig parameterizes a walk-forward run.
type BacktestConfig struct {
	States    int
	Method    Method
	Orders    []int
	Smoothing float64

	MinLookback    int
	RetrainEvery   int
	ProbThreshold  float64
	InitialCapital float64
	Workers        int
}

func (c *BacktestConfig) normalize() error {
	if c.States == 0 {
		c.States = DefaultStates
	}
	if c.States < 2 {
		return fmt.Errorf("%w: state count %d, need at least 2", ErrUnsupportedConfiguration, c.States)
	}
	if c.Method == "" {
		c.Method = MethodReturns
	}
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if len(c.Orders) == 0 {
		c.Orders = append([]int(nil), DefaultOrders...)
	}
	for _, o := range c.Orders {
		if o < 1 {
			return fmt.Errorf("%w: chain order %d, need at least 1", ErrUnsupportedConfiguration, o)
		}
	}
	if c.Smoothing <= 0 {
		c.Smoothing = DefaultSmoothing
	}
	if c.MinLookback <= 0 {
		c.MinLookback = DefaultMinLookback
	}
	if c.RetrainEvery <= 0 {
		c.RetrainEvery = DefaultRetrainEvery
	}
	if c.ProbThreshold <= 0 || c.ProbThreshold >= 1 {
		c.ProbThreshold = DefaultProbThreshold
	}
	if c.InitialCapital <= 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return nil
}

// StepOutcome is one walk-forward prediction compared with the realized
// outcome.
type StepOutcome struct {
	Index            int // index into the return series
	CurrentPrice     float64
	PredictedPrice   float64
	ActualPrice      float64
	PredictedReturn  float64 // log return
	ActualReturn     float64 // log return
	ProbUp           float64
	DirectionCorrect bool
}

// TradingStats summarizes the long/flat trading simulation.
type TradingStats struct {
	InitialCapital float64
	FinalCapital   float64
	TotalReturnPct float64
	Trades         int
	Wins           int
	Losses         int
	WinRatePct     float64
	AvgProfit      float64
	MaxProfit      float64
	MaxLoss        float64
	ProfitFactor   float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// BaselineComparison relates model direction accuracy to naive strategies.
// All values are percentages.
type BaselineComparison struct {
	ModelAccuracy         float64
	RandomBaseline        float64
	AlwaysUpBaseline      float64
	NaiveBaseline         float64
	ImprovementOverRandom float64
	ImprovementOverNaive  float64
}

// BacktestReport aggregates a walk-forward run. When the deadline expired
// before all windows finished, Partial is true and metrics cover the
// contiguous completed prefix.
type BacktestReport struct {
	Steps []StepOutcome

	Windows          int
	CompletedWindows int
	Partial          bool

	DirectionAccuracy float64
	MAE               float64
	MAEPct            float64
	RMSE              float64
	RMSEPct           float64
	MAPE              float64
	R2                float64
	Correlation       float64
	ReturnMAE         float64

	Trading  *TradingStats
	Baseline *BaselineComparison

	MinLookback  int
	RetrainEvery int
}

// Backtest replays the discretize/train/predict pipeline over prices with a
// strict walk-forward protocol: the model scoring step t trains only on data
// strictly before t. Windows sharing the fixed lookback are independent and
// evaluated concurrently, then merged in order.
func Backtest(ctx context.Context, prices []float64, cfg BacktestConfig) (*BacktestReport, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	returns, err := LogReturns(prices)
	if err != nil {
		return nil, err
	}
	if len(returns) <= cfg.MinLookback {
		return nil, fmt.Errorf("%w: %d returns, walk-forward needs more than %d", ErrInsufficientData, len(returns), cfg.MinLookback)
	}

	type window struct{ start, end int } // half-open over return indices
	var windows []window
	for start := cfg.MinLookback; start < len(returns); start += cfg.RetrainEvery {
		end := start + cfg.RetrainEvery
		if end > len(returns) {
			end = len(returns)
		}
		windows = append(windows, window{start: start, end: end})
	}

	results := make([][]StepOutcome, len(windows))
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

dispatch:
	for wi, win := range windows {
		select {
		case <-runCtx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(wi int, win window) {
			defer wg.Done()
			defer func() { <-sem }()
			steps, err := evaluateWindow(prices, returns, win.start, win.end, cfg)
			if err != nil {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("window starting at %d: %w", win.start, err)
					cancel()
				})
				return
			}
			results[wi] = steps
		}(wi, win)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	report := &BacktestReport{
		Windows:      len(windows),
		MinLookback:  cfg.MinLookback,
		RetrainEvery: cfg.RetrainEvery,
	}
	for _, steps := range results {
		if steps == nil {
			report.Partial = true
			break
		}
		report.Steps = append(report.Steps, steps...)
		report.CompletedWindows++
	}
	if report.CompletedWindows == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest completed no windows: %w", err)
		}
		return nil, fmt.Errorf("%w: backtest completed no windows", ErrInsufficientData)
	}

	computeMetrics(report)
	report.Trading = tradingPerformance(report.Steps, cfg)
	report.Baseline = baselineComparison(report.Steps, report.DirectionAccuracy)
	return report, nil
}

// evaluateWindow trains on the lookback preceding the window start and
// scores every step inside it with an expected-value prediction. A training
// window with degenerate returns (a flat market) degrades to a zero-return
// flat forecast instead of failing the whole run.
func evaluateWindow(prices, returns []float64, start, end int, cfg BacktestConfig) ([]StepOutcome, error) {
	trainLo := start - cfg.MinLookback
	train := returns[trainLo:start]

	disc, err := FitDiscretizer(train, cfg.States, cfg.Method)
	if err != nil {
		if errors.Is(err, ErrDegenerateDistribution) {
			return flatWindow(prices, returns, start, end), nil
		}
		return nil, err
	}

	chains := make([]*Chain, 0, len(cfg.Orders))
	trainStates := disc.TransformAll(train)
	for _, order := range cfg.Orders {
		chain, err := NewChain(order, cfg.States, WithSmoothing(cfg.Smoothing))
		if err != nil {
			return nil, err
		}
		if err := chain.Train(trainStates); err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}
	ens, err := NewEnsemble(chains)
	if err != nil {
		return nil, err
	}
	stateReturns := disc.StateReturns()

	// context grows with realized states inside the window, keeping each
	// prediction conditioned only on data before its step
	history := make([]State, len(trainStates), len(trainStates)+(end-start))
	copy(history, trainStates)

	steps := make([]StepOutcome, 0, end-start)
	for t := start; t < end; t++ {
		dist, err := ens.Distribution(history)
		if err != nil {
			return nil, err
		}
		predRet := ExpectedReturn(dist, stateReturns)
		probUp := ProbUp(dist, stateReturns)

		actualRet := returns[t]
		currentPrice := prices[t]
		actualPrice := prices[t+1]

		steps = append(steps, StepOutcome{
			Index:            t,
			CurrentPrice:     currentPrice,
			PredictedPrice:   currentPrice * math.Exp(predRet),
			ActualPrice:      actualPrice,
			PredictedReturn:  predRet,
			ActualReturn:     actualRet,
			ProbUp:           probUp,
			DirectionCorrect: (predRet > 0) == (actualRet > 0),
		})

		history = append(history, disc.Transform(actualRet))
	}
	return steps, nil
}

// flatWindow emits zero-return forecasts for a window whose training data
// cannot support a fit.
func flatWindow(prices, returns []float64, start, end int) []StepOutcome {
	steps := make([]StepOutcome, 0, end-start)
	for t := start; t < end; t++ {
		steps = append(steps, StepOutcome{
			Index:            t,
			CurrentPrice:     prices[t],
			PredictedPrice:   prices[t],
			ActualPrice:      prices[t+1],
			PredictedReturn:  0,
			ActualReturn:     returns[t],
			ProbUp:           0.5,
			DirectionCorrect: returns[t] <= 0,
		})
	}
	return steps
}

func computeMetrics(r *BacktestReport) {
	n := len(r.Steps)
	if n == 0 {
		return
	}

	correct := 0
	var sumAbs, sumSq, sumAbsPct, sumSqPct, sumRetAbs float64
	pred := make([]float64, n)
	actual := make([]float64, n)
	for i, s := range r.Steps {
		if s.DirectionCorrect {
			correct++
		}
		errAbs := math.Abs(s.PredictedPrice - s.ActualPrice)
		sumAbs += errAbs
		sumSq += errAbs * errAbs
		if s.ActualPrice != 0 {
			pct := errAbs / s.ActualPrice
			sumAbsPct += pct
			sumSqPct += pct * pct
		}
		sumRetAbs += math.Abs(s.PredictedReturn - s.ActualReturn)
		pred[i] = s.PredictedPrice
		actual[i] = s.ActualPrice
	}

	fn := float64(n)
	r.DirectionAccuracy = float64(correct) / fn
	r.MAE = sumAbs / fn
	r.MAEPct = sumAbsPct / fn * 100
	r.RMSE = math.Sqrt(sumSq / fn)
	r.RMSEPct = math.Sqrt(sumSqPct/fn) * 100
	r.MAPE = sumAbsPct / fn * 100
	r.ReturnMAE = sumRetAbs / fn

	meanActual := mean(actual)
	var ssRes, ssTot float64
	for i := range actual {
		dr := actual[i] - pred[i]
		dt := actual[i] - meanActual
		ssRes += dr * dr
		ssTot += dt * dt
	}
	if ssTot > 0 {
		r.R2 = 1 - ssRes/ssTot
	}
	r.Correlation = correlation(pred, actual)
}

// tradingPerformance simulates a long/flat strategy gated on the
// probability-of-increase threshold, compounding capital across trades.
func tradingPerformance(steps []StepOutcome, cfg BacktestConfig) *TradingStats {
	capital := cfg.InitialCapital
	var profits []float64
	equity := []float64{capital}

	for _, s := range steps {
		if !(s.PredictedReturn > 0 && s.ProbUp > cfg.ProbThreshold) {
			continue
		}
		stepRet := math.Expm1(s.ActualReturn)
		profit := capital * stepRet
		capital += profit
		profits = append(profits, profit)
		equity = append(equity, capital)
	}
	if len(profits) == 0 {
		return &TradingStats{
			InitialCapital: cfg.InitialCapital,
			FinalCapital:   capital,
		}
	}

	stats := &TradingStats{
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   capital,
		TotalReturnPct: (capital - cfg.InitialCapital) / cfg.InitialCapital * 100,
		Trades:         len(profits),
		MaxProfit:      profits[0],
		MaxLoss:        profits[0],
	}

	var grossProfit, grossLoss, sum float64
	for _, p := range profits {
		sum += p
		if p > 0 {
			stats.Wins++
			grossProfit += p
		} else if p < 0 {
			stats.Losses++
			grossLoss += -p
		}
		if p > stats.MaxProfit {
			stats.MaxProfit = p
		}
		if p < stats.MaxLoss {
			stats.MaxLoss = p
		}
	}
	stats.WinRatePct = float64(stats.Wins) / float64(stats.Trades) * 100
	stats.AvgProfit = sum / float64(stats.Trades)
	if grossLoss > 0 {
		stats.ProfitFactor = grossProfit / grossLoss
	}

	runningMax := equity[0]
	maxDD := 0.0
	for _, c := range equity {
		if c > runningMax {
			runningMax = c
		}
		if runningMax > 0 {
			if dd := (runningMax - c) / runningMax; dd > maxDD {
				maxDD = dd
			}
		}
	}
	stats.MaxDrawdownPct = maxDD * 100

	rets := make([]float64, len(profits))
	for i, p := range profits {
		rets[i] = p / cfg.InitialCapital
	}
	if sd := stddev(rets); sd > 0 {
		stats.SharpeRatio = mean(rets) / sd
	}

	return stats
}

func baselineComparison(steps []StepOutcome, modelAccuracy float64) *BaselineComparison {
	if len(steps) == 0 {
		return nil
	}
	upCount := 0
	for _, s := range steps {
		if s.ActualReturn > 0 {
			upCount++
		}
	}
	alwaysUp := float64(upCount) / float64(len(steps))

	naive := 0.5
	if len(steps) > 1 {
		match := 0
		for i := 1; i < len(steps); i++ {
			if (steps[i-1].ActualReturn > 0) == (steps[i].ActualReturn > 0) {
				match++
			}
		}
		naive = float64(match) / float64(len(steps)-1)
	}

	return &BaselineComparison{
		ModelAccuracy:         modelAccuracy * 100,
		RandomBaseline:        50,
		AlwaysUpBaseline:      alwaysUp * 100,
		NaiveBaseline:         naive * 100,
		ImprovementOverRandom: (modelAccuracy - 0.5) * 100,
		ImprovementOverNaive:  (modelAccuracy - naive) * 100,
	}
}
