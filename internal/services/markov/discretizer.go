package markov

import (
	"fmt"
	"math"
)

// State is a discrete market state in [0, K). States are totally ordered by
// their representative return: state 0 carries the most negative bucket mean.
type State int

// Method selects the discretization strategy. The set is closed; each value
// maps to one strategy chosen once at fit time.
type Method string

const (
	MethodReturns    Method = "returns"
	MethodVolatility Method = "volatility"
	MethodKMeans     Method = "kmeans"
	MethodHybrid     Method = "hybrid"
)

// ParseMethod validates a raw method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodReturns, MethodVolatility, MethodKMeans, MethodHybrid:
		return Method(s), nil
	case "":
		return MethodReturns, nil
	default:
		return "", fmt.Errorf("%w: unknown discretization method %q", ErrUnsupportedConfiguration, s)
	}
}

// volWindow is the trailing window for the rolling volatility estimate used
// by the volatility-adjusted strategy.
const volWindow = 20

// hybridMix is the weight given to the cluster boundaries when blending with
// the quantile boundaries in the hybrid strategy.
const hybridMix = 0.5

// strategy computes interior bucket boundaries for a return series.
// Boundaries live in a transform space: raw returns are divided by scale
// before threshold comparison (scale is 1 for strategies that operate on raw
// returns).
type strategy interface {
	boundaries(returns []float64, k int) (bounds []float64, scale float64, err error)
}

type quantileStrategy struct{}

func (quantileStrategy) boundaries(returns []float64, k int) ([]float64, float64, error) {
	bounds := make([]float64, k-1)
	for i := 1; i < k; i++ {
		bounds[i-1] = quantile(returns, float64(i)/float64(k))
	}
	return bounds, 1, nil
}

// volAdjustedStrategy buckets returns normalized by a rolling volatility
// estimate. Out-of-sample transforms scale by the estimate at the end of the
// fit window.
type volAdjustedStrategy struct {
	window int
}

func (s volAdjustedStrategy) boundaries(returns []float64, k int) ([]float64, float64, error) {
	w := s.window
	if w <= 1 {
		w = volWindow
	}
	sigmas := rollingStd(returns, w)
	scaled := make([]float64, len(returns))
	for i, r := range returns {
		sig := sigmas[i]
		if sig == 0 {
			// no variance yet in the trailing window, leave the raw value
			scaled[i] = r
			continue
		}
		scaled[i] = r / sig
	}
	bounds := make([]float64, k-1)
	for i := 1; i < k; i++ {
		bounds[i-1] = quantile(scaled, float64(i)/float64(k))
	}
	scale := sigmas[len(sigmas)-1]
	if scale == 0 {
		scale = 1
	}
	return bounds, scale, nil
}

// kmeansStrategy places boundaries at the midpoints between adjacent
// centroids of a deterministic 1-D k-means run over the returns. Sorting the
// centroids keeps states ordered by representative return.
type kmeansStrategy struct{}

func (kmeansStrategy) boundaries(returns []float64, k int) ([]float64, float64, error) {
	centroids, err := kmeans1D(returns, k, kmeansMaxIter)
	if err != nil {
		return nil, 0, err
	}
	bounds := make([]float64, k-1)
	for i := 0; i < k-1; i++ {
		bounds[i] = (centroids[i] + centroids[i+1]) / 2
	}
	return bounds, 1, nil
}

// hybridStrategy blends quantile and cluster boundaries with a fixed mixing
// weight.
type hybridStrategy struct {
	mix float64
}

func (s hybridStrategy) boundaries(returns []float64, k int) ([]float64, float64, error) {
	qb, _, err := quantileStrategy{}.boundaries(returns, k)
	if err != nil {
		return nil, 0, err
	}
	kb, _, err := kmeansStrategy{}.boundaries(returns, k)
	if err != nil {
		return nil, 0, err
	}
	mix := s.mix
	if mix < 0 || mix > 1 {
		mix = hybridMix
	}
	bounds := make([]float64, k-1)
	for i := range bounds {
		bounds[i] = (1-mix)*qb[i] + mix*kb[i]
	}
	return bounds, 1, nil
}

func strategyFor(method Method) (strategy, error) {
	switch method {
	case MethodReturns:
		return quantileStrategy{}, nil
	case MethodVolatility:
		return volAdjustedStrategy{window: volWindow}, nil
	case MethodKMeans:
		return kmeansStrategy{}, nil
	case MethodHybrid:
		return hybridStrategy{mix: hybridMix}, nil
	default:
		return nil, fmt.Errorf("%w: unknown discretization method %q", ErrUnsupportedConfiguration, method)
	}
}

// Discretizer maps continuous returns onto K ordered states. A fitted
// instance is immutable; Transform is pure.
type Discretizer struct {
	method Method
	k      int
	bounds []float64 // k-1 ascending interior thresholds, transform space
	scale  float64   // divisor applied before threshold comparison
	labels []string
	means  []float64 // mean raw return per state
	counts []int
}

// FitDiscretizer fits a discretizer with k states on a training return
// series using the given method.
func FitDiscretizer(returns []float64, k int, method Method) (*Discretizer, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: state count %d, need at least 2", ErrUnsupportedConfiguration, k)
	}
	if len(returns) < k {
		return nil, fmt.Errorf("%w: %d observations for %d states", ErrInsufficientData, len(returns), k)
	}
	if n := distinctCount(returns, k); n < k {
		return nil, fmt.Errorf("%w: only %d distinct return values for %d states", ErrDegenerateDistribution, n, k)
	}
	if populationStd(returns) == 0 {
		return nil, fmt.Errorf("%w: zero variance over %d observations", ErrDegenerateDistribution, len(returns))
	}

	strat, err := strategyFor(method)
	if err != nil {
		return nil, err
	}
	bounds, scale, err := strat.boundaries(returns, k)
	if err != nil {
		return nil, err
	}

	d := &Discretizer{
		method: method,
		k:      k,
		bounds: bounds,
		scale:  scale,
		labels: stateLabels(k),
		means:  make([]float64, k),
		counts: make([]int, k),
	}

	sums := make([]float64, k)
	for _, r := range returns {
		s := d.Transform(r)
		sums[s] += r
		d.counts[s]++
	}
	for s := 0; s < k; s++ {
		if d.counts[s] == 0 {
			return nil, fmt.Errorf("%w: state %d empty after bucketing %d observations", ErrDegenerateDistribution, s, len(returns))
		}
		d.means[s] = sums[s] / float64(d.counts[s])
	}

	return d, nil
}

// Transform maps a single return to its state. Boundary ties resolve to the
// lower state; values outside the training range clamp to the extremes.
func (d *Discretizer) Transform(r float64) State {
	z := r
	if d.scale != 0 && d.scale != 1 {
		z = r / d.scale
	}
	for i, b := range d.bounds {
		if z <= b {
			return State(i)
		}
	}
	return State(d.k - 1)
}

// TransformAll maps a return series to its state sequence.
func (d *Discretizer) TransformAll(returns []float64) []State {
	states := make([]State, len(returns))
	for i, r := range returns {
		states[i] = d.Transform(r)
	}
	return states
}

// NumStates returns K.
func (d *Discretizer) NumStates() int { return d.k }

// Method returns the strategy the discretizer was fitted with.
func (d *Discretizer) Method() Method { return d.method }

// Label returns the semantic label for a state.
func (d *Discretizer) Label(s State) string {
	if int(s) < 0 || int(s) >= len(d.labels) {
		return fmt.Sprintf("State %d", int(s))
	}
	return d.labels[int(s)]
}

// Labels returns all state labels in state order.
func (d *Discretizer) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// StateReturn returns the representative (bucket mean) return of a state.
func (d *Discretizer) StateReturn(s State) float64 {
	if int(s) < 0 || int(s) >= len(d.means) {
		return 0
	}
	return d.means[int(s)]
}

// StateReturns returns the representative return per state in state order.
func (d *Discretizer) StateReturns() []float64 {
	out := make([]float64, len(d.means))
	copy(out, d.means)
	return out
}

// StateCount returns the number of training observations assigned to a state.
func (d *Discretizer) StateCount(s State) int {
	if int(s) < 0 || int(s) >= len(d.counts) {
		return 0
	}
	return d.counts[int(s)]
}

// Boundaries returns the interior thresholds in transform space.
func (d *Discretizer) Boundaries() []float64 {
	out := make([]float64, len(d.bounds))
	copy(out, d.bounds)
	return out
}

func stateLabels(k int) []string {
	switch k {
	case 3:
		return []string{"Down", "Neutral", "Up"}
	case 5:
		return []string{"Strong Down", "Down", "Neutral", "Up", "Strong Up"}
	default:
		out := make([]string, k)
		for i := range out {
			out[i] = fmt.Sprintf("State %d", i)
		}
		return out
	}
}

// distinctCount counts distinct values, stopping early once `enough` are
// found.
func distinctCount(xs []float64, enough int) int {
	seen := make(map[float64]struct{}, enough)
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		seen[x] = struct{}{}
		if len(seen) >= enough {
			return len(seen)
		}
	}
	return len(seen)
}
