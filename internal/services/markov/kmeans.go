package markov

import (
	"fmt"
	"sort"
)

const kmeansMaxIter = 100

// kmeans1D runs Lloyd's algorithm over a one-dimensional sample and returns
// k centroids in ascending order. The run is fully deterministic: centroids
// initialize at evenly spaced sample quantiles and assignment ties go to the
// lower cluster index.
func kmeans1D(xs []float64, k int, maxIter int) ([]float64, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: cluster count %d, need at least 2", ErrUnsupportedConfiguration, k)
	}
	if len(xs) < k {
		return nil, fmt.Errorf("%w: %d samples for %d clusters", ErrInsufficientData, len(xs), k)
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	centroids := make([]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = quantileSorted(sorted, (2*float64(i)+1)/(2*float64(k)))
	}

	assign := make([]int, len(sorted))
	sums := make([]float64, k)
	counts := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, x := range sorted {
			best := 0
			bestDist := abs(x - centroids[0])
			for c := 1; c < k; c++ {
				if d := abs(x - centroids[c]); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		for c := 0; c < k; c++ {
			sums[c] = 0
			counts[c] = 0
		}
		for i, x := range sorted {
			sums[assign[i]] += x
			counts[assign[i]]++
		}
		for c := 0; c < k; c++ {
			// an emptied cluster keeps its previous centroid
			if counts[c] > 0 {
				centroids[c] = sums[c] / float64(counts[c])
			}
		}
	}

	sort.Float64s(centroids)
	return centroids, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
