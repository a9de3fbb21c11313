package simulation

import (
	"fmt"

	"quant_valuation/pkg/core/features"
)

// Deterministic computes the classical point DCF at the distribution
// means: constant growth and margin over the horizon, a single discount
// rate, Gordon growth terminal value. This is the closed-form anchor the
// simulated median is calibrated against.
func Deterministic(basis features.Basis, a Assumptions) (float64, error) {
	if a.HorizonYears < 1 {
		return 0, fmt.Errorf("horizon_years must be at least 1, got %d", a.HorizonYears)
	}
	r := a.DiscountRateMean
	if r <= a.TerminalGrowth {
		return 0, fmt.Errorf("discount rate %.4f does not exceed terminal growth %.4f", r, a.TerminalGrowth)
	}

	revenue := basis.BaseRevenue
	discountFactor := 1.0
	pvFCF := 0.0
	finalFCF := 0.0

	for t := 1; t <= a.HorizonYears; t++ {
		revenue *= 1 + a.GrowthMean
		fcf := revenue * a.MarginMean
		discountFactor /= 1 + r
		pvFCF += fcf * discountFactor
		finalFCF = fcf
	}

	tv := finalFCF * (1 + a.TerminalGrowth) / (r - a.TerminalGrowth)
	return pvFCF + tv*discountFactor, nil
}
