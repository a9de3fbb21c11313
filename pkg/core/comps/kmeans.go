package comps

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// =============================================================================
// K-MEANS (Lloyd's algorithm, deterministic for a fixed seed)
// =============================================================================

func euclidean(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// seedCentroids picks initial centroids with k-means++: the first
// uniformly, each next with probability proportional to the squared
// distance from the nearest chosen centroid.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clonePoint(points[rng.Intn(n)]))

	d2 := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := squaredDistance(p, c); d < best {
					best = d
				}
			}
			d2[i] = best
			total += best
		}

		next := 0
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, d := range d2 {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		} else {
			// All points coincide with chosen centroids.
			next = rng.Intn(n)
		}
		centroids = append(centroids, clonePoint(points[next]))
	}
	return centroids
}

// assignPoints labels every point with its nearest centroid, ties going
// to the lowest centroid index. Distance work is chunked across the
// worker pool; the returned labels are index-aligned with points.
func assignPoints(points [][]float64, centroids [][]float64, workers int) []int {
	n := len(points)
	labels := make([]int, n)
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				best := 0
				bestDist := squaredDistance(points[i], centroids[0])
				for c := 1; c < len(centroids); c++ {
					if d := squaredDistance(points[i], centroids[c]); d < bestDist {
						best = c
						bestDist = d
					}
				}
				labels[i] = best
			}
		}(lo, hi)
	}
	wg.Wait()
	return labels
}

// updateCentroids recomputes cluster means. Clusters left empty by the
// assignment are reseeded on the unclaimed point farthest from its own
// centroid, keeping k stable and the procedure deterministic.
func updateCentroids(points [][]float64, labels []int, k int) [][]float64 {
	dims := len(points[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := 0; c < k; c++ {
		centroids[c] = make([]float64, dims)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for d := 0; d < dims; d++ {
			centroids[c][d] += p[d]
		}
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		for d := 0; d < dims; d++ {
			centroids[c][d] /= float64(counts[c])
		}
	}

	claimed := make(map[int]bool)
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		f := farthestPoint(points, labels, centroids, counts, claimed)
		claimed[f] = true
		copy(centroids[c], points[f])
	}
	return centroids
}

// farthestPoint finds the unclaimed point with the largest distance to
// its own (non-empty) cluster mean, lowest index on ties.
func farthestPoint(points [][]float64, labels []int, centroids [][]float64, counts []int, claimed map[int]bool) int {
	best, bestDist := 0, -1.0
	for i, p := range points {
		if claimed[i] {
			continue
		}
		c := labels[i]
		if counts[c] == 0 {
			continue
		}
		if dist := squaredDistance(p, centroids[c]); dist > bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// lloyd iterates assignment and centroid update until labels stabilize
// or maxIter is reached. Cancellation is observed between iterations;
// a cancelled run returns no partial labeling.
func lloyd(ctx context.Context, points [][]float64, k, maxIter, workers int, rng *rand.Rand) ([]int, [][]float64, error) {
	centroids := seedCentroids(points, k, rng)
	labels := assignPoints(points, centroids, workers)

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("clustering cancelled at iteration %d: %w", iter, err)
		}
		centroids = updateCentroids(points, labels, k)
		next := assignPoints(points, centroids, workers)
		if equalLabels(labels, next) {
			break
		}
		labels = next
	}
	return labels, centroids, nil
}

func equalLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clonePoint(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
