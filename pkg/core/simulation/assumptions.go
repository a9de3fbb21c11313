package simulation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Assumptions parameterizes one Monte Carlo DCF run. Growth, margin and
// discount rate are sampled from truncated normal distributions with the
// means and deviations below; terminal value uses Gordon growth.
type Assumptions struct {
	GrowthMean         float64 `json:"growth_mean" validate:"gte=-1,lte=2"`
	GrowthStdDev       float64 `json:"growth_stddev" validate:"gte=0"`
	MarginMean         float64 `json:"margin_mean" validate:"gte=-1,lte=1"`
	MarginStdDev       float64 `json:"margin_stddev" validate:"gte=0"`
	DiscountRateMean   float64 `json:"discount_rate_mean" validate:"gt=0,lte=1"`
	DiscountRateStdDev float64 `json:"discount_rate_stddev" validate:"gte=0"`
	TerminalGrowth     float64 `json:"terminal_growth" validate:"gte=-0.05,lte=0.1"`
	HorizonYears       int     `json:"horizon_years" validate:"gte=1,lte=30"`
	TrialCount         int     `json:"trial_count" validate:"gte=1000"`
}

// NewAssumptions returns assumptions with baseline defaults. Callers
// overwrite the distribution parameters from derived history or an
// analyst profile before running.
func NewAssumptions() *Assumptions {
	return &Assumptions{
		GrowthMean:         0.05,
		GrowthStdDev:       0.02,
		MarginMean:         0.15,
		MarginStdDev:       0.03,
		DiscountRateMean:   0.09,
		DiscountRateStdDev: 0.01,
		TerminalGrowth:     0.025,
		HorizonYears:       5,
		TrialCount:         10000,
	}
}

// Validate checks field bounds and the cross-field requirement that the
// mean discount rate exceeds terminal growth (otherwise the Gordon
// capitalization diverges). Configuration loaders call this before a
// run; the simulator itself surfaces a violated rate spread through
// trial survival instead.
func (a *Assumptions) Validate() error {
	validate := validator.New()
	if err := validate.Struct(a); err != nil {
		return err
	}
	if a.DiscountRateMean <= a.TerminalGrowth {
		return fmt.Errorf("discount_rate_mean %.4f must exceed terminal_growth %.4f", a.DiscountRateMean, a.TerminalGrowth)
	}
	return nil
}
