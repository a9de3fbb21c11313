package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_valuation/pkg/core/features"
	"quant_valuation/pkg/models"
)

func TestDeriveAssumptionsFromHistory(t *testing.T) {
	basis := features.Basis{
		Ticker:          "ACME",
		BaseRevenue:     1400,
		GrowthMean:      0.12,
		GrowthStdDev:    0.03,
		FCFMarginMean:   0.19,
		FCFMarginStdDev: 0.02,
		Periods:         4,
	}
	profile := models.CompanyProfile{Ticker: "ACME", Beta: 1.2}
	mkt := MarketContext{RiskFreeRate: 0.04, EquityRiskPremium: 0.05}

	a := DeriveAssumptions(basis, profile, mkt)

	assert.InDelta(t, 0.12, a.GrowthMean, 1e-9)
	assert.InDelta(t, 0.03, a.GrowthStdDev, 1e-9)
	assert.InDelta(t, 0.19, a.MarginMean, 1e-9)
	// CAPM: 0.04 + 1.2 * 0.05 = 0.10.
	assert.InDelta(t, 0.10, a.DiscountRateMean, 1e-9)
	assert.InDelta(t, defaultTerminalGrowth, a.TerminalGrowth, 1e-9)
	require.NoError(t, a.Validate())
}

func TestDeriveAssumptionsClampsAndFloors(t *testing.T) {
	basis := features.Basis{
		Ticker:      "HOT",
		BaseRevenue: 100,
		GrowthMean:  0.80, // unsustainable, clamp
		// zero deviations from a flat two-year history
	}
	a := DeriveAssumptions(basis, models.CompanyProfile{}, MarketContext{RiskFreeRate: 0.04, EquityRiskPremium: 0.05})

	assert.InDelta(t, maxDerivedGrowth, a.GrowthMean, 1e-9)
	assert.InDelta(t, minStdDevFloor, a.GrowthStdDev, 1e-9)
	assert.InDelta(t, minStdDevFloor, a.MarginStdDev, 1e-9)
	// Beta defaults to 1.0: 0.04 + 0.05 = 0.09.
	assert.InDelta(t, 0.09, a.DiscountRateMean, 1e-9)
}

func TestDeriveAssumptionsKeepsRateAboveTerminalGrowth(t *testing.T) {
	// A defensive low-beta name in a low-rate regime still has to clear
	// the Gordon spread.
	profile := models.CompanyProfile{Beta: 0.1}
	a := DeriveAssumptions(features.Basis{BaseRevenue: 100}, profile, MarketContext{RiskFreeRate: 0.005, EquityRiskPremium: 0.03})

	assert.Greater(t, a.DiscountRateMean, a.TerminalGrowth)
	assert.InDelta(t, defaultTerminalGrowth+minRateSpread, a.DiscountRateMean, 1e-9)
	assert.NoError(t, a.Validate())
}
