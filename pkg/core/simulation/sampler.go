package simulation

import "math/rand"

// Sampling bounds. Growth and margin paths are truncated to spans that
// keep a single year from dominating a trajectory; the discount rate
// must stay strictly positive.
const (
	minGrowth       = -0.5
	maxGrowth       = 1.0
	minMargin       = -1.0
	maxMargin       = 1.0
	minDiscountRate = 1e-4
	maxDiscountRate = 1.0

	truncRejectLimit = 100
)

// truncNorm draws from Normal(mean, std) restricted to [lo, hi] by
// rejection. A zero deviation, or a distribution whose mass sits almost
// entirely outside the window, degrades to the clamped mean so the draw
// always terminates in bounds.
func truncNorm(rng *rand.Rand, mean, std, lo, hi float64) float64 {
	if std <= 0 {
		return clamp(mean, lo, hi)
	}
	for i := 0; i < truncRejectLimit; i++ {
		x := mean + std*rng.NormFloat64()
		if x >= lo && x <= hi {
			return x
		}
	}
	return clamp(mean, lo, hi)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// splitmix64 mixes a 64-bit state into a well-distributed output.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// batchSeed derives an independent, reproducible seed for one trial
// batch. The mapping depends only on the run seed and the batch index,
// never on worker scheduling.
func batchSeed(seed int64, batch int) int64 {
	return int64(splitmix64(uint64(seed) ^ splitmix64(uint64(batch)+1)))
}
