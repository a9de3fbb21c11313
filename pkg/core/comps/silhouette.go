package comps

import "sync"

// meanSilhouette scores a labeling in [-1, 1]. For each point, a is the
// mean distance to its own cluster's other members and b the smallest
// mean distance to any other cluster; s = (b-a)/max(a,b). Singleton
// cluster members score 0. The per-point distance sweeps are chunked
// across the worker pool; the result does not depend on worker count.
func meanSilhouette(points [][]float64, labels []int, k, workers int) float64 {
	n := len(points)
	if n == 0 || k < 2 {
		return 0
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	scores := make([]float64, n)
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
			sums := make([]float64, k)
			for i := lo; i < hi; i++ {
				scores[i] = silhouetteOf(points, labels, counts, sums, i)
			}
		}(lo, hi)
	}
	wg.Wait()

	var total float64
	for _, s := range scores {
		total += s
	}
	return total / float64(n)
}

// silhouetteOf computes one point's score. sums is scratch space of
// length k owned by the calling goroutine.
func silhouetteOf(points [][]float64, labels []int, counts []int, sums []float64, i int) float64 {
	for c := range sums {
		sums[c] = 0
	}
	for j := range points {
		if i == j {
			continue
		}
		sums[labels[j]] += euclidean(points[i], points[j])
	}

	own := labels[i]
	if counts[own] < 2 {
		return 0 // singleton
	}
	a := sums[own] / float64(counts[own]-1)

	b := -1.0
	for c := range sums {
		if c == own || counts[c] == 0 {
			continue
		}
		mean := sums[c] / float64(counts[c])
		if b < 0 || mean < b {
			b = mean
		}
	}
	if b < 0 {
		return 0 // no other populated cluster
	}

	max := a
	if b > max {
		max = b
	}
	if max == 0 {
		return 0
	}
	return (b - a) / max
}
