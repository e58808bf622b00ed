// Package quantization implements product quantization codebooks (§4.5)
// and the shared k-means++ trainer used both for IVF coarse centroids and
// PQ subcodebooks, grounded on the teacher's pkg/quantization/
// product_quantization.go and pkg/index/ivf.go (whose kMeansIVF already
// used k-means++ initialization; generalized here into one trainer shared
// by both callers instead of being duplicated per index).
package quantization

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrNotConverged is returned by callers of KMeans when the result's
// Converged field is false: the iteration cap was exhausted without
// centroid movement dropping below eps, per §7's TrainingFailed path.
var ErrNotConverged = errors.New("quantization: k-means did not converge to the configured iteration cap")

// KMeansResult holds trained centroids and the iteration count actually
// used (useful for diagnostics and for the TrainingFailed error path).
type KMeansResult struct {
	Centroids [][]float32
	Iters     int
	Converged bool
}

// KMeans runs k-means++ initialization followed by Lloyd's algorithm, with
// early-stop once the largest centroid movement between iterations drops
// below eps, per §4.5 ("fixed iteration cap with early-stop when centroid
// movement falls below ε").
func KMeans(vectors [][]float32, k, maxIters int, eps float64, rng *rand.Rand) (KMeansResult, error) {
	if len(vectors) < k {
		return KMeansResult{}, fmt.Errorf("quantization: need at least %d vectors, got %d", k, len(vectors))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	dim := len(vectors[0])

	centroids := kMeansPlusPlusInit(vectors, k, dim, rng)
	assignments := make([]int, len(vectors))

	converged := false
	iter := 0
	for ; iter < maxIters; iter++ {
		changed := false
		for i, vec := range vectors {
			best, bestDist := 0, float32(math.MaxFloat32)
			for c, centroid := range centroids {
				d := sqEuclidean(vec, centroid)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		newCentroids := make([][]float32, k)
		counts := make([]int, k)
		for c := range newCentroids {
			newCentroids[c] = make([]float32, dim)
		}
		for i, vec := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				newCentroids[c][d] += vec[d]
			}
		}
		maxMovement := 0.0
		for c := range newCentroids {
			if counts[c] == 0 {
				newCentroids[c] = centroids[c] // keep empty clusters in place
				continue
			}
			for d := 0; d < dim; d++ {
				newCentroids[c][d] /= float32(counts[c])
			}
			movement := math.Sqrt(float64(sqEuclidean(newCentroids[c], centroids[c])))
			if movement > maxMovement {
				maxMovement = movement
			}
		}
		centroids = newCentroids

		if !changed || maxMovement < eps {
			converged = true
			iter++
			break
		}
	}

	return KMeansResult{Centroids: centroids, Iters: iter, Converged: converged}, nil
}

func kMeansPlusPlusInit(vectors [][]float32, k, dim int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, k)
	first := make([]float32, dim)
	copy(first, vectors[rng.Intn(len(vectors))])
	centroids[0] = first

	for i := 1; i < k; i++ {
		distances := make([]float64, len(vectors))
		var total float64
		for j, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			for c := 0; c < i; c++ {
				d := sqEuclidean(vec, centroids[c])
				if d < minDist {
					minDist = d
				}
			}
			distances[j] = float64(minDist)
			total += distances[j]
		}
		if total == 0 {
			// all remaining points coincide with a chosen centroid
			idx := rng.Intn(len(vectors))
			next := make([]float32, dim)
			copy(next, vectors[idx])
			centroids[i] = next
			continue
		}
		r := rng.Float64() * total
		var cum float64
		chosen := len(vectors) - 1
		for j, d := range distances {
			cum += d
			if cum >= r {
				chosen = j
				break
			}
		}
		next := make([]float32, dim)
		copy(next, vectors[chosen])
		centroids[i] = next
	}
	return centroids
}

func sqEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
