package markov

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

const (
	// DefaultPaths is the Monte Carlo path count for multi-day horizons.
	DefaultPaths = 2000
	// DefaultNextDayPaths is the path count used for one-day forecasts.
	DefaultNextDayPaths = 5000

	varConfidence = 0.95
)

// SimConfig parameterizes a Monte Carlo run.
type SimConfig struct {
	HorizonDays int
	Paths       int
	Seed        int64
	Workers     int // defaults to GOMAXPROCS
}

func (c *SimConfig) normalize() error {
	if c.HorizonDays < 0 {
		return fmt.Errorf("%w: negative horizon %d", ErrUnsupportedConfiguration, c.HorizonDays)
	}
	if c.Paths <= 0 {
		if c.HorizonDays <= 1 {
			c.Paths = DefaultNextDayPaths
		} else {
			c.Paths = DefaultPaths
		}
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return nil
}

// DayStats aggregates simulated prices for a single day of the horizon.
type DayStats struct {
	Day           int
	ExpectedPrice float64
	MedianPrice   float64
	Std           float64
	CI68          [2]float64
	CI95          [2]float64
	MinPrice      float64
	MaxPrice      float64
}

// SimResult aggregates a Monte Carlo run. When the deadline expired before
// all paths finished, Partial is true and the statistics cover Completed
// paths only.
type SimResult struct {
	CurrentPrice   float64
	ExpectedPrice  float64
	MedianPrice    float64
	PriceStd       float64
	ExpectedReturn float64
	ReturnStd      float64
	CI68           [2]float64
	CI95           [2]float64

	// ProbUp and ProbDown are NaN when ProbUpDefined is false (zero-day
	// horizon leaves direction undefined).
	ProbUp        float64
	ProbDown      float64
	ProbUpDefined bool

	VaRReturn  float64
	VaRLoss    float64
	CVaRReturn float64
	CVaRLoss   float64
	MaxLoss    float64

	Days []DayStats

	Requested int
	Completed int
	Partial   bool
}

// Simulator draws future price paths by sampling state transitions from an
// ensemble. Each path owns a seeded RNG; workers share nothing but read-only
// model state, merging results in a single reduction at the end.
type Simulator struct {
	ensemble     *Ensemble
	stateReturns []float64 // representative log return per state
}

// NewSimulator builds a simulator over a trained ensemble.
func NewSimulator(e *Ensemble, stateReturns []float64) (*Simulator, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil ensemble", ErrUnsupportedConfiguration)
	}
	if len(stateReturns) != e.NumStates() {
		return nil, fmt.Errorf("%w: %d state returns for %d states", ErrUnsupportedConfiguration, len(stateReturns), e.NumStates())
	}
	return &Simulator{ensemble: e, stateReturns: stateReturns}, nil
}

// Simulate runs cfg.Paths independent paths from the given state history and
// current price. Overflowing compounding surfaces as ErrNumericOverflow. On
// deadline expiry the aggregate over completed paths returns with Partial
// set.
func (sim *Simulator) Simulate(ctx context.Context, currentPrice float64, history []State, cfg SimConfig) (*SimResult, error) {
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return nil, fmt.Errorf("%w: current price %v", ErrUnsupportedConfiguration, currentPrice)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if cfg.HorizonDays == 0 {
		// point result: direction over zero days is undefined, not 50/50
		return &SimResult{
			CurrentPrice:  currentPrice,
			ExpectedPrice: currentPrice,
			MedianPrice:   currentPrice,
			CI68:          [2]float64{currentPrice, currentPrice},
			CI95:          [2]float64{currentPrice, currentPrice},
			ProbUp:        math.NaN(),
			ProbDown:      math.NaN(),
			ProbUpDefined: false,
			Requested:     cfg.Paths,
			Completed:     cfg.Paths,
		}, nil
	}

	paths := make([][]float64, cfg.Paths) // per-path daily prices, nil until done
	jobs := make(chan int)
	var wg sync.WaitGroup
	var overflowOnce sync.Once
	var overflowErr error

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				prices, err := sim.runPath(currentPrice, history, cfg.HorizonDays, cfg.Seed+int64(idx))
				if err != nil {
					overflowOnce.Do(func() {
						overflowErr = fmt.Errorf("path %d: %w", idx, err)
						cancel()
					})
					return
				}
				paths[idx] = prices
			}
		}()
	}

feed:
	for i := 0; i < cfg.Paths; i++ {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if overflowErr != nil {
		return nil, overflowErr
	}

	completed := make([][]float64, 0, cfg.Paths)
	for _, p := range paths {
		if p != nil {
			completed = append(completed, p)
		}
	}
	partial := len(completed) < cfg.Paths
	if len(completed) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation produced no paths: %w", err)
		}
		return nil, fmt.Errorf("%w: simulation produced no paths", ErrInsufficientData)
	}

	res := sim.aggregate(currentPrice, completed, cfg.HorizonDays)
	res.Requested = cfg.Paths
	res.Completed = len(completed)
	res.Partial = partial
	return res, nil
}

// runPath samples one state/price trajectory.
func (sim *Simulator) runPath(currentPrice float64, history []State, horizon int, seed int64) ([]float64, error) {
	rng := rand.New(rand.NewSource(seed))

	ctxStates := make([]State, len(history), len(history)+horizon)
	copy(ctxStates, history)

	prices := make([]float64, horizon)
	cumLog := 0.0
	for day := 0; day < horizon; day++ {
		dist, err := sim.ensemble.Distribution(ctxStates)
		if err != nil {
			return nil, err
		}
		next := sampleState(dist, rng)
		ctxStates = append(ctxStates, next)

		cumLog += sim.stateReturns[int(next)]
		price := currentPrice * math.Exp(cumLog)
		if math.IsInf(price, 0) || math.IsNaN(price) {
			return nil, fmt.Errorf("%w: price not finite after %d days (cumulative log return %v)", ErrNumericOverflow, day+1, cumLog)
		}
		prices[day] = price
	}
	return prices, nil
}

// sampleState draws a state index from a distribution with an inverse-CDF
// draw.
func sampleState(dist []float64, rng *rand.Rand) State {
	u := rng.Float64()
	acc := 0.0
	for s, p := range dist {
		acc += p
		if u < acc {
			return State(s)
		}
	}
	return State(len(dist) - 1)
}

func (sim *Simulator) aggregate(currentPrice float64, paths [][]float64, horizon int) *SimResult {
	terminal := make([]float64, len(paths))
	rets := make([]float64, len(paths))
	up, down := 0, 0
	for i, p := range paths {
		terminal[i] = p[horizon-1]
		rets[i] = terminal[i]/currentPrice - 1
		if rets[i] > 0 {
			up++
		} else if rets[i] < 0 {
			down++
		}
	}

	sortedTerm := make([]float64, len(terminal))
	copy(sortedTerm, terminal)
	sort.Float64s(sortedTerm)

	res := &SimResult{
		CurrentPrice:   currentPrice,
		ExpectedPrice:  mean(terminal),
		MedianPrice:    quantileSorted(sortedTerm, 0.5),
		PriceStd:       populationStd(terminal),
		ExpectedReturn: mean(rets),
		ReturnStd:      populationStd(rets),
		CI68:           [2]float64{quantileSorted(sortedTerm, 0.16), quantileSorted(sortedTerm, 0.84)},
		CI95:           [2]float64{quantileSorted(sortedTerm, 0.025), quantileSorted(sortedTerm, 0.975)},
		ProbUp:         float64(up) / float64(len(paths)),
		ProbDown:       float64(down) / float64(len(paths)),
		ProbUpDefined:  true,
	}

	// VaR / CVaR at 95% over terminal simple returns
	varRet := quantile(rets, 1-varConfidence)
	res.VaRReturn = varRet
	if varRet < 0 {
		res.VaRLoss = currentPrice * -varRet
	}
	var tail []float64
	for _, r := range rets {
		if r <= varRet {
			tail = append(tail, r)
		}
	}
	cvarRet := varRet
	if len(tail) > 0 {
		cvarRet = mean(tail)
	}
	res.CVaRReturn = cvarRet
	if cvarRet < 0 {
		res.CVaRLoss = currentPrice * -cvarRet
	}
	minRet := rets[0]
	for _, r := range rets[1:] {
		if r < minRet {
			minRet = r
		}
	}
	if minRet < 0 {
		res.MaxLoss = currentPrice * -minRet
	}

	res.Days = make([]DayStats, horizon)
	day := make([]float64, len(paths))
	for d := 0; d < horizon; d++ {
		for i, p := range paths {
			day[i] = p[d]
		}
		sortedDay := make([]float64, len(day))
		copy(sortedDay, day)
		sort.Float64s(sortedDay)
		res.Days[d] = DayStats{
			Day:           d + 1,
			ExpectedPrice: mean(day),
			MedianPrice:   quantileSorted(sortedDay, 0.5),
			Std:           populationStd(day),
			CI68:          [2]float64{quantileSorted(sortedDay, 0.16), quantileSorted(sortedDay, 0.84)},
			CI95:          [2]float64{quantileSorted(sortedDay, 0.025), quantileSorted(sortedDay, 0.975)},
			MinPrice:      sortedDay[0],
			MaxPrice:      sortedDay[len(sortedDay)-1],
		}
	}

	return res
}
