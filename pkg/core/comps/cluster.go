package comps

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"quant_valuation/pkg/core/features"
)

// OutlierLabel is the reserved label for companies too far from every
// centroid to belong to any cluster. Outliers never appear in peer sets.
const OutlierLabel = -1

// Assignment is the result of clustering one universe. Labels are dense
// 0..K-1 plus OutlierLabel; every input company appears exactly once.
type Assignment struct {
	Labels     map[string]int     `json:"labels"`
	Centroids  [][]float64        `json:"centroids"`
	K          int                `json:"k"`
	Silhouette float64            `json:"silhouette"`
	Distances  map[string]float64 `json:"distances"`
}

// Clusterer groups scaled feature vectors into comparable-company
// clusters. Safe for concurrent use; all randomness flows from the seed
// passed per call.
type Clusterer struct {
	cfg     Config
	workers int
}

// NewClusterer builds a clusterer from config. Workers <= 0 selects
// NumCPU.
func NewClusterer(cfg Config) *Clusterer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Clusterer{cfg: cfg, workers: workers}
}

// Cluster partitions the universe by k-means over scaled features.
// Companies are processed in sorted-ticker order, so the caller's map
// order can never influence labels. With cfg.K == 0 the cluster count
// is chosen by mean silhouette over 2..min(MaxAutoK, sqrt(n)). After
// convergence, points farther than OutlierMultiple times the median
// own-centroid distance from every centroid get OutlierLabel, and the
// remaining labels are re-densified.
func (c *Clusterer) Cluster(ctx context.Context, vectors map[string]*features.Vector, seed int64) (*Assignment, error) {
	n := len(vectors)
	if n < 2 {
		return nil, fmt.Errorf("clustering requires at least 2 companies, got %d", n)
	}

	tickers := make([]string, 0, n)
	for t := range vectors {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	points := make([][]float64, n)
	for i, t := range tickers {
		points[i] = clonePoint(vectors[t].Values[:])
	}

	ks, err := c.candidateKs(n)
	if err != nil {
		return nil, err
	}

	bestLabels, bestCentroids := []int(nil), [][]float64(nil)
	bestScore := math.Inf(-1)
	for _, k := range ks {
		rng := rand.New(rand.NewSource(seed))
		labels, centroids, err := lloyd(ctx, points, k, c.cfg.MaxIterations, c.workers, rng)
		if err != nil {
			return nil, err
		}
		score := meanSilhouette(points, labels, k, c.workers)
		if score > bestScore {
			bestScore = score
			bestLabels, bestCentroids = labels, centroids
		}
	}

	return c.finalize(tickers, points, bestLabels, bestCentroids, len(bestCentroids), bestScore), nil
}

// candidateKs resolves the k values to evaluate.
func (c *Clusterer) candidateKs(n int) ([]int, error) {
	if c.cfg.K > 0 {
		if c.cfg.K > n {
			return nil, fmt.Errorf("k %d exceeds universe size %d", c.cfg.K, n)
		}
		return []int{c.cfg.K}, nil
	}

	maxK := int(math.Floor(math.Sqrt(float64(n))))
	if maxK > c.cfg.MaxAutoK {
		maxK = c.cfg.MaxAutoK
	}
	if maxK < 2 {
		maxK = 2
	}
	if maxK > n {
		maxK = n
	}

	ks := make([]int, 0, maxK-1)
	for k := 2; k <= maxK; k++ {
		ks = append(ks, k)
	}
	return ks, nil
}

// finalize applies the outlier rule and re-densifies labels.
func (c *Clusterer) finalize(tickers []string, points [][]float64, labels []int, centroids [][]float64, k int, silhouette float64) *Assignment {
	n := len(points)

	ownDist := make([]float64, n)
	for i := range points {
		ownDist[i] = euclidean(points[i], centroids[labels[i]])
	}
	threshold := c.cfg.OutlierMultiple * median(ownDist)

	minDist := make([]float64, n)
	outlier := make([]bool, n)
	for i := range points {
		best := math.Inf(1)
		for _, cent := range centroids {
			if d := euclidean(points[i], cent); d < best {
				best = d
			}
		}
		minDist[i] = best
		outlier[i] = best > threshold
	}

	// Compact the labels that survive outlier removal.
	used := make(map[int]bool)
	for i := range points {
		if !outlier[i] {
			used[labels[i]] = true
		}
	}
	remap := make(map[int]int, len(used))
	kept := make([]int, 0, len(used))
	for old := 0; old < k; old++ {
		if used[old] {
			remap[old] = len(kept)
			kept = append(kept, old)
		}
	}

	asg := &Assignment{
		Labels:     make(map[string]int, n),
		Centroids:  make([][]float64, 0, len(kept)),
		K:          len(kept),
		Silhouette: silhouette,
		Distances:  make(map[string]float64, n),
	}
	for _, old := range kept {
		asg.Centroids = append(asg.Centroids, centroids[old])
	}
	for i, t := range tickers {
		if outlier[i] {
			asg.Labels[t] = OutlierLabel
			asg.Distances[t] = minDist[i]
			continue
		}
		asg.Labels[t] = remap[labels[i]]
		asg.Distances[t] = ownDist[i]
	}
	return asg
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
