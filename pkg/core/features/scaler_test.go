package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func vecWith(ticker string, growth, margin float64) *Vector {
	v := &Vector{Ticker: ticker, SchemaVersion: SchemaVersion}
	v.Values[IdxRevenueGrowth] = growth
	v.Values[IdxOperatingMargin] = margin
	return v
}

func TestScalerZScore(t *testing.T) {
	pop := []*Vector{
		vecWith("A", 1.0, 0.10),
		vecWith("B", 2.0, 0.10),
		vecWith("C", 3.0, 0.10),
	}

	s := FitScaler(pop)
	assert.InDelta(t, 2.0, s.Mean[IdxRevenueGrowth], 1e-9)
	assert.InDelta(t, 1.0, s.StdDev[IdxRevenueGrowth], 1e-9)

	out := s.Transform(pop[0])
	assert.InDelta(t, -1.0, out.Values[IdxRevenueGrowth], 1e-9)
	assert.Equal(t, "A", out.Ticker)

	out = s.Transform(pop[2])
	assert.InDelta(t, 1.0, out.Values[IdxRevenueGrowth], 1e-9)

	// Input vector is left untouched.
	assert.InDelta(t, 3.0, pop[2].Values[IdxRevenueGrowth], 1e-9)
}

func TestScalerZeroVarianceFeature(t *testing.T) {
	pop := []*Vector{
		vecWith("A", 1.0, 0.10),
		vecWith("B", 2.0, 0.10),
	}

	s := FitScaler(pop)
	out := s.Transform(pop[0])

	// Identical margins across the population collapse to the sentinel.
	assert.Zero(t, out.Values[IdxOperatingMargin])
	assert.True(t, out.Unreliable[IdxOperatingMargin])
}

func TestScalerPreservesExistingFlags(t *testing.T) {
	a := vecWith("A", 1.0, 0.10)
	a.Unreliable[IdxROE] = true
	b := vecWith("B", 3.0, 0.30)

	s := FitScaler([]*Vector{a, b})
	out := s.Transform(a)
	assert.True(t, out.Unreliable[IdxROE])
}
