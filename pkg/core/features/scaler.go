package features

import "math"

// Scaler standardizes feature vectors against a reference population
// (z-score). Fit once per request universe, then applied to every
// vector that feeds clustering or the predictor.
type Scaler struct {
	Mean   [FeatureCount]float64
	StdDev [FeatureCount]float64
	N      int
}

// FitScaler computes per-feature mean and sample standard deviation
// over the reference population. An empty population yields an identity
// scaler that marks everything unreliable on Transform.
func FitScaler(population []*Vector) *Scaler {
	s := &Scaler{N: len(population)}
	if len(population) == 0 {
		return s
	}

	for i := 0; i < FeatureCount; i++ {
		var sum float64
		for _, v := range population {
			sum += v.Values[i]
		}
		s.Mean[i] = sum / float64(len(population))
	}

	if len(population) < 2 {
		return s
	}
	for i := 0; i < FeatureCount; i++ {
		var ss float64
		for _, v := range population {
			d := v.Values[i] - s.Mean[i]
			ss += d * d
		}
		s.StdDev[i] = math.Sqrt(ss / float64(len(population)-1))
	}
	return s
}

// Transform returns a standardized copy of v. Features with zero
// population deviation scale to the 0.0 sentinel and are flagged;
// flags already present on v are preserved.
func (s *Scaler) Transform(v *Vector) *Vector {
	out := &Vector{Ticker: v.Ticker, SchemaVersion: v.SchemaVersion, Unreliable: v.Unreliable}
	for i := 0; i < FeatureCount; i++ {
		if s.StdDev[i] == 0 {
			out.Values[i] = 0
			out.Unreliable[i] = true
			continue
		}
		out.Values[i] = (v.Values[i] - s.Mean[i]) / s.StdDev[i]
	}
	return out
}
