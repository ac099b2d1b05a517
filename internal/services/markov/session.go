package markov

import (
	"context"
	"fmt"
	"math"
)

const (
	// DefaultStates is the default discretization alphabet size.
	DefaultStates = 5
	// DefaultMinObservations is the minimum return count accepted by Train.
	DefaultMinObservations = 60
)

// DefaultOrders are the member chain orders of a default ensemble.
var DefaultOrders = []int{1, 2, 3}

// Config parameterizes a model session.
type Config struct {
	States          int
	Method          Method
	Orders          []int
	Smoothing       float64
	MinObservations int
}

func (c *Config) normalize() error {
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
	seen := map[int]bool{}
	for _, o := range c.Orders {
		if o < 1 {
			return fmt.Errorf("%w: chain order %d, need at least 1", ErrUnsupportedConfiguration, o)
		}
		if seen[o] {
			return fmt.Errorf("%w: duplicate chain order %d", ErrUnsupportedConfiguration, o)
		}
		seen[o] = true
	}
	if c.Smoothing <= 0 {
		c.Smoothing = DefaultSmoothing
	}
	if c.MinObservations <= 0 {
		c.MinObservations = DefaultMinObservations
	}
	return nil
}

// LogReturns converts an ordered positive price series into log returns
// r_t = ln(p_t / p_{t-1}).
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: %d prices, need at least 2", ErrInsufficientData, len(prices))
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 || math.IsNaN(prices[i]) {
			return nil, fmt.Errorf("%w: non-positive price %v at index %d", ErrUnsupportedConfiguration, prices[i], i)
		}
		out[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return out, nil
}

// Session owns one discretizer fit, one set of trained chains, and one
// weight vector for a single price series. Sessions never share mutable
// state; a failed Train leaves no session behind.
type Session struct {
	cfg     Config
	disc    *Discretizer
	ens     *Ensemble
	sim     *Simulator
	states  []State
	returns []float64
	last    float64
}

// Train fits the full pipeline on a price series.
func Train(prices []float64, cfg Config) (*Session, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	returns, err := LogReturns(prices)
	if err != nil {
		return nil, err
	}
	if len(returns) < cfg.MinObservations {
		return nil, fmt.Errorf("%w: %d observations, need at least %d", ErrInsufficientData, len(returns), cfg.MinObservations)
	}

	disc, err := FitDiscretizer(returns, cfg.States, cfg.Method)
	if err != nil {
		return nil, err
	}
	states := disc.TransformAll(returns)

	chains := make([]*Chain, 0, len(cfg.Orders))
	for _, order := range cfg.Orders {
		chain, err := NewChain(order, cfg.States, WithSmoothing(cfg.Smoothing))
		if err != nil {
			return nil, err
		}
		if err := chain.Train(states); err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}
	ens, err := NewEnsemble(chains)
	if err != nil {
		return nil, err
	}
	sim, err := NewSimulator(ens, disc.StateReturns())
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:     cfg,
		disc:    disc,
		ens:     ens,
		sim:     sim,
		states:  states,
		returns: returns,
		last:    prices[len(prices)-1],
	}, nil
}

// Config returns the normalized session configuration.
func (s *Session) Config() Config { return s.cfg }

// Discretizer exposes the fitted discretizer.
func (s *Session) Discretizer() *Discretizer { return s.disc }

// Ensemble exposes the trained ensemble.
func (s *Session) Ensemble() *Ensemble { return s.ens }

// CurrentPrice returns the last price of the training series.
func (s *Session) CurrentPrice() float64 { return s.last }

// CurrentState returns the most recent training state.
func (s *Session) CurrentState() State { return s.states[len(s.states)-1] }

// Observations returns the training return count.
func (s *Session) Observations() int { return len(s.returns) }

// Weights returns the current ensemble weight vector.
func (s *Session) Weights() []float64 { return s.ens.Weights() }

// Predict runs a Monte Carlo simulation from the end of the training series.
func (s *Session) Predict(ctx context.Context, cfg SimConfig) (*SimResult, error) {
	return s.sim.Simulate(ctx, s.last, s.states, cfg)
}

// NextDistribution returns the ensemble's one-step next-state distribution.
func (s *Session) NextDistribution() ([]float64, error) {
	return s.ens.Distribution(s.states)
}

// OptimizeWeights tunes the ensemble weights on the validation tail of the
// training data and adopts the winner.
func (s *Session) OptimizeWeights(ctx context.Context, obj Objective) ([]float64, float64, error) {
	return s.ens.OptimizeWeights(ctx, s.states, s.returns, s.disc.StateReturns(), obj)
}

// TransitionMatrix returns the smoothed order-1 transition matrix. Rows for
// states never observed as a context fall back to the marginal distribution.
func (s *Session) TransitionMatrix() ([][]float64, error) {
	k := s.cfg.States
	chain, err := NewChain(1, k, WithSmoothing(s.cfg.Smoothing))
	if err != nil {
		return nil, err
	}
	if err := chain.Train(s.states); err != nil {
		return nil, err
	}
	matrix := make([][]float64, k)
	for from := 0; from < k; from++ {
		row, err := chain.Distribution([]State{State(from)})
		if err != nil {
			return nil, err
		}
		matrix[from] = row
	}
	return matrix, nil
}

// StateStat describes one state of the fitted alphabet.
type StateStat struct {
	State      int
	Label      string
	Count      int
	Frequency  float64
	MeanReturn float64
}

// StateStats returns per-state occupancy and representative returns.
func (s *Session) StateStats() []StateStat {
	k := s.cfg.States
	out := make([]StateStat, k)
	total := float64(len(s.returns))
	for i := 0; i < k; i++ {
		st := State(i)
		out[i] = StateStat{
			State:      i,
			Label:      s.disc.Label(st),
			Count:      s.disc.StateCount(st),
			Frequency:  float64(s.disc.StateCount(st)) / total,
			MeanReturn: s.disc.StateReturn(st),
		}
	}
	return out
}
