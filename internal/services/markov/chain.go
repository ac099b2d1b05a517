package markov

import (
	"fmt"
	"strconv"
)

// DefaultSmoothing is the additive (Laplace) smoothing constant applied to
// transition counts.
const DefaultSmoothing = 1.0

// Chain is a Markov chain of a fixed memory order over K states. Transition
// counts are kept in a sparse context table; every chain of order > 0 holds a
// link to the next lower order, terminating at the order-0 marginal, so an
// unseen context backs off instead of failing.
type Chain struct {
	order    int
	k        int
	alpha    float64
	counts   map[string][]float64 // context key -> next-state counts
	totals   map[string]float64
	lower    *Chain
	trained  bool
	observed int
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithSmoothing overrides the Laplace smoothing constant.
func WithSmoothing(alpha float64) ChainOption {
	return func(c *Chain) {
		if alpha > 0 {
			c.alpha = alpha
		}
	}
}

// NewChain builds an untrained chain of the given order with back-off links
// down to order 0.
func NewChain(order, numStates int, opts ...ChainOption) (*Chain, error) {
	if order < 0 {
		return nil, fmt.Errorf("%w: negative chain order %d", ErrUnsupportedConfiguration, order)
	}
	if numStates < 2 {
		return nil, fmt.Errorf("%w: state count %d, need at least 2", ErrUnsupportedConfiguration, numStates)
	}
	c := &Chain{
		order:  order,
		k:      numStates,
		alpha:  DefaultSmoothing,
		counts: make(map[string][]float64),
		totals: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if order > 0 {
		lower, err := NewChain(order-1, numStates, opts...)
		if err != nil {
			return nil, err
		}
		c.lower = lower
	}
	return c, nil
}

// Order returns the chain's memory order.
func (c *Chain) Order() int { return c.order }

// NumStates returns K.
func (c *Chain) NumStates() int { return c.k }

// Train counts every observed (context, next state) pair in the sequence and
// trains all lower orders on the same data.
func (c *Chain) Train(states []State) error {
	if len(states) <= c.order {
		return fmt.Errorf("%w: %d states for order-%d chain", ErrInsufficientData, len(states), c.order)
	}
	for _, s := range states {
		if int(s) < 0 || int(s) >= c.k {
			return fmt.Errorf("%w: state %d outside [0,%d)", ErrUnsupportedConfiguration, int(s), c.k)
		}
	}

	c.counts = make(map[string][]float64)
	c.totals = make(map[string]float64)
	for i := c.order; i < len(states); i++ {
		key := contextKey(states[i-c.order : i])
		row := c.counts[key]
		if row == nil {
			row = make([]float64, c.k)
			c.counts[key] = row
		}
		row[states[i]]++
		c.totals[key]++
	}
	c.observed = len(states) - c.order
	c.trained = true

	if c.lower != nil {
		return c.lower.Train(states)
	}
	return nil
}

// Distribution returns the smoothed next-state distribution conditioned on
// the last `order` states of history. A context never observed in training
// backs off to the order-(k-1) chain; order 0 is the marginal frequency and
// is always defined on a trained chain. The result sums to 1 within 1e-9.
func (c *Chain) Distribution(history []State) ([]float64, error) {
	if !c.trained {
		return nil, fmt.Errorf("%w: chain of order %d is not trained", ErrInsufficientData, c.order)
	}
	if len(history) < c.order {
		if c.lower != nil {
			return c.lower.Distribution(history)
		}
		return nil, fmt.Errorf("%w: history of %d states for order-%d chain", ErrInsufficientData, len(history), c.order)
	}

	key := contextKey(history[len(history)-c.order:])
	row, ok := c.counts[key]
	if !ok {
		if c.lower != nil {
			return c.lower.Distribution(history)
		}
		// order 0 has the empty context; unreachable after training
		return nil, fmt.Errorf("%w: untrained marginal", ErrInsufficientData)
	}

	total := c.totals[key]
	denom := total + c.alpha*float64(c.k)
	dist := make([]float64, c.k)
	for s := 0; s < c.k; s++ {
		dist[s] = (row[s] + c.alpha) / denom
	}
	return dist, nil
}

// ContextCount returns the number of distinct contexts observed in training.
func (c *Chain) ContextCount() int { return len(c.counts) }

// contextKey encodes a state context into a map key.
func contextKey(ctx []State) string {
	if len(ctx) == 0 {
		return ""
	}
	b := make([]byte, 0, len(ctx)*3)
	for i, s := range ctx {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(s), 10)
	}
	return string(b)
}
