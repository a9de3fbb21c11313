package simulation

import (
	"quant_valuation/pkg/core/features"
	"quant_valuation/pkg/models"
)

// MarketContext supplies the market-level rates assumption derivation
// needs. Values are decimals (0.042 = 4.2%).
type MarketContext struct {
	RiskFreeRate      float64 `json:"risk_free_rate" validate:"gte=0,lte=0.2"`
	EquityRiskPremium float64 `json:"equity_risk_premium" validate:"gte=0,lte=0.2"`
}

// Derivation guards. Historical estimates are noisy over short windows;
// the clamps and floors keep a derived configuration simulateable.
const (
	maxDerivedGrowth = 0.25
	minDerivedGrowth = -0.15
	minStdDevFloor   = 0.01
	minRateSpread    = 0.02

	defaultBeta           = 1.0
	defaultTerminalGrowth = 0.025
)

// DeriveAssumptions back-solves simulation assumptions from a company's
// history and market context. Growth and margin distributions come from
// the observed snapshots; the discount rate is the CAPM cost of equity
// (risk-free + beta x equity premium), held above terminal growth by a
// minimum spread. Horizon and trial count keep the NewAssumptions
// defaults; callers override them from configuration.
func DeriveAssumptions(basis features.Basis, profile models.CompanyProfile, mkt MarketContext) Assumptions {
	a := *NewAssumptions()

	a.GrowthMean = clamp(basis.GrowthMean, minDerivedGrowth, maxDerivedGrowth)
	a.GrowthStdDev = basis.GrowthStdDev
	if a.GrowthStdDev < minStdDevFloor {
		a.GrowthStdDev = minStdDevFloor
	}

	a.MarginMean = clamp(basis.FCFMarginMean, minMargin, maxMargin)
	a.MarginStdDev = basis.FCFMarginStdDev
	if a.MarginStdDev < minStdDevFloor {
		a.MarginStdDev = minStdDevFloor
	}

	beta := profile.Beta
	if beta == 0 {
		beta = defaultBeta
	}
	costOfEquity := mkt.RiskFreeRate + beta*mkt.EquityRiskPremium

	a.TerminalGrowth = defaultTerminalGrowth
	if costOfEquity < a.TerminalGrowth+minRateSpread {
		costOfEquity = a.TerminalGrowth + minRateSpread
	}
	a.DiscountRateMean = costOfEquity
	a.DiscountRateStdDev = minStdDevFloor

	return a
}
