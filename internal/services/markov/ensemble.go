package markov

import (
	"context"
	"fmt"
	"math"
)

// weightTolerance bounds the accepted deviation of an externally supplied
// weight vector's sum from 1.
const weightTolerance = 1e-9

// weightGridUnits is the resolution of the deterministic simplex grid search
// in OptimizeWeights: weights move in steps of 1/weightGridUnits.
const weightGridUnits = 10

// Objective selects the score maximized by weight optimization.
type Objective string

const (
	ObjectiveAccuracy Objective = "accuracy"
	ObjectiveSharpe   Objective = "sharpe"
	ObjectiveReturn   Objective = "return"
)

// ParseObjective validates a raw objective string.
func ParseObjective(s string) (Objective, error) {
	switch Objective(s) {
	case ObjectiveAccuracy, ObjectiveSharpe, ObjectiveReturn:
		return Objective(s), nil
	case "":
		return ObjectiveAccuracy, nil
	default:
		return "", fmt.Errorf("%w: unknown objective %q", ErrUnsupportedConfiguration, s)
	}
}

// Ensemble combines the next-state distributions of several chains through a
// weight vector. Weights are non-negative, sum to 1, start uniform, and stay
// immutable during prediction.
type Ensemble struct {
	chains  []*Chain
	weights []float64
	k       int
}

// NewEnsemble builds an ensemble over the given trained chains with uniform
// weights.
func NewEnsemble(chains []*Chain) (*Ensemble, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("%w: ensemble needs at least one chain", ErrUnsupportedConfiguration)
	}
	k := chains[0].NumStates()
	for _, c := range chains {
		if c.NumStates() != k {
			return nil, fmt.Errorf("%w: mixed state counts %d and %d", ErrUnsupportedConfiguration, k, c.NumStates())
		}
	}
	weights := make([]float64, len(chains))
	for i := range weights {
		weights[i] = 1 / float64(len(chains))
	}
	return &Ensemble{chains: chains, weights: weights, k: k}, nil
}

// NumStates returns K.
func (e *Ensemble) NumStates() int { return e.k }

// Size returns the number of member chains.
func (e *Ensemble) Size() int { return len(e.chains) }

// Orders returns the member chain orders.
func (e *Ensemble) Orders() []int {
	out := make([]int, len(e.chains))
	for i, c := range e.chains {
		out[i] = c.Order()
	}
	return out
}

// Weights returns a copy of the current weight vector.
func (e *Ensemble) Weights() []float64 {
	out := make([]float64, len(e.weights))
	copy(out, e.weights)
	return out
}

// SetWeights replaces the weight vector. Entries must be non-negative and
// sum to 1 within tolerance.
func (e *Ensemble) SetWeights(ws []float64) error {
	if len(ws) != len(e.chains) {
		return fmt.Errorf("%w: %d weights for %d chains", ErrUnsupportedConfiguration, len(ws), len(e.chains))
	}
	sum := 0.0
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: negative weight %v", ErrUnsupportedConfiguration, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, expected 1", ErrUnsupportedConfiguration, sum)
	}
	next := make([]float64, len(ws))
	copy(next, ws)
	e.weights = next
	return nil
}

// Distribution returns the weighted sum of each member's next-state
// distribution, re-normalized to sum to 1.
func (e *Ensemble) Distribution(history []State) ([]float64, error) {
	dist := make([]float64, e.k)
	for i, c := range e.chains {
		d, err := c.Distribution(history)
		if err != nil {
			return nil, fmt.Errorf("order-%d member: %w", c.Order(), err)
		}
		w := e.weights[i]
		for s := 0; s < e.k; s++ {
			dist[s] += w * d[s]
		}
	}
	sum := 0.0
	for _, p := range dist {
		sum += p
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: ensemble distribution sums to %v", ErrNumericOverflow, sum)
	}
	for s := range dist {
		dist[s] /= sum
	}
	return dist, nil
}

// ExpectedReturn collapses a distribution to a point forecast using per-state
// representative returns.
func ExpectedReturn(dist, stateReturns []float64) float64 {
	out := 0.0
	for s, p := range dist {
		if s < len(stateReturns) {
			out += p * stateReturns[s]
		}
	}
	return out
}

// ProbUp sums the probability mass on states with positive representative
// returns.
func ProbUp(dist, stateReturns []float64) float64 {
	out := 0.0
	for s, p := range dist {
		if s < len(stateReturns) && stateReturns[s] > 0 {
			out += p
		}
	}
	return out
}

// OptimizeWeights searches the weight simplex on a fixed deterministic grid
// and keeps the vector maximizing the objective on the validation tail of the
// state sequence. Ties keep the first candidate found, which is the
// lexicographically smallest vector in the traversal order. On success the
// ensemble adopts the winning weights.
func (e *Ensemble) OptimizeWeights(ctx context.Context, states []State, returns []float64, stateReturns []float64, obj Objective) ([]float64, float64, error) {
	if len(states) != len(returns) {
		return nil, 0, fmt.Errorf("%w: %d states vs %d returns", ErrUnsupportedConfiguration, len(states), len(returns))
	}
	// validation tail: last quarter, at least 10 points
	val := len(states) / 4
	if val < 10 {
		val = 10
	}
	if val >= len(states) {
		return nil, 0, fmt.Errorf("%w: %d observations, need more than %d for validation", ErrInsufficientData, len(states), val)
	}
	start := len(states) - val

	best := e.Weights()
	bestScore := math.Inf(-1)
	found := false

	candidates := simplexGrid(len(e.chains), weightGridUnits)
	saved := e.Weights()
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			e.weights = saved
			return nil, 0, err
		}
		e.weights = cand
		score, err := e.scoreWeights(states, returns, stateReturns, start, obj)
		if err != nil {
			e.weights = saved
			return nil, 0, err
		}
		if score > bestScore {
			bestScore = score
			best = cand
			found = true
		}
	}
	e.weights = saved
	if !found {
		return nil, 0, fmt.Errorf("%w: no scorable weight candidates", ErrInsufficientData)
	}
	if err := e.SetWeights(best); err != nil {
		return nil, 0, err
	}
	return e.Weights(), bestScore, nil
}

// scoreWeights evaluates the current weights by one-step-ahead prediction
// over states[start:].
func (e *Ensemble) scoreWeights(states []State, returns []float64, stateReturns []float64, start int, obj Objective) (float64, error) {
	correct, total := 0, 0
	var stratReturns []float64

	for t := start; t < len(states); t++ {
		dist, err := e.Distribution(states[:t])
		if err != nil {
			return 0, err
		}
		pred := ExpectedReturn(dist, stateReturns)
		actual := returns[t]

		if (pred > 0) == (actual > 0) {
			correct++
		}
		total++

		stepRet := 0.0
		if pred > 0 {
			stepRet = actual
		}
		stratReturns = append(stratReturns, stepRet)
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: empty validation window", ErrInsufficientData)
	}

	switch obj {
	case ObjectiveAccuracy:
		return float64(correct) / float64(total), nil
	case ObjectiveReturn:
		sum := 0.0
		for _, r := range stratReturns {
			sum += r
		}
		return sum, nil
	case ObjectiveSharpe:
		sd := stddev(stratReturns)
		if sd == 0 {
			return 0, nil
		}
		return mean(stratReturns) / sd, nil
	default:
		return 0, fmt.Errorf("%w: unknown objective %q", ErrUnsupportedConfiguration, obj)
	}
}

// simplexGrid enumerates every vector of m non-negative weights in steps of
// 1/units summing to 1, in lexicographic order.
func simplexGrid(m, units int) [][]float64 {
	var out [][]float64
	cur := make([]int, m)
	var rec func(idx, remaining int)
	rec = func(idx, remaining int) {
		if idx == m-1 {
			cur[idx] = remaining
			w := make([]float64, m)
			for i, u := range cur {
				w[i] = float64(u) / float64(units)
			}
			out = append(out, w)
			return
		}
		for u := 0; u <= remaining; u++ {
			cur[idx] = u
			rec(idx+1, remaining-u)
		}
	}
	rec(0, units)
	return out
}
