package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssumptionsDefaultsValidate(t *testing.T) {
	a := NewAssumptions()
	require.NoError(t, a.Validate())
}

func TestAssumptionsValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Assumptions)
	}{
		{"trial count below minimum", func(a *Assumptions) { a.TrialCount = 500 }},
		{"zero horizon", func(a *Assumptions) { a.HorizonYears = 0 }},
		{"negative growth deviation", func(a *Assumptions) { a.GrowthStdDev = -0.01 }},
		{"margin above one", func(a *Assumptions) { a.MarginMean = 1.5 }},
		{"zero discount rate", func(a *Assumptions) { a.DiscountRateMean = 0 }},
		{"rate at terminal growth", func(a *Assumptions) { a.DiscountRateMean = a.TerminalGrowth }},
		{"rate below terminal growth", func(a *Assumptions) { a.DiscountRateMean = 0.01; a.TerminalGrowth = 0.03 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssumptions()
			tc.mutate(a)
			assert.Error(t, a.Validate())
		})
	}
}
