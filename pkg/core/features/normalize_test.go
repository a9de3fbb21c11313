package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_valuation/pkg/models"
)

func acmeHistory() []models.FinancialSnapshot {
	return []models.FinancialSnapshot{
		{Ticker: "ACME", FiscalYear: 2021, Revenue: 1000, OperatingIncome: 200, NetIncome: 150, DepreciationAmortization: 50, OperatingCashFlow: 260, CapitalExpenditure: -60, FreeCashFlow: 200, TotalDebt: 300, CashAndEquivalents: 100, TotalEquity: 500, SharesOutstanding: 100},
		{Ticker: "ACME", FiscalYear: 2022, Revenue: 1100, OperatingIncome: 230, NetIncome: 160, DepreciationAmortization: 52, OperatingCashFlow: 280, CapitalExpenditure: -70, FreeCashFlow: 210, TotalDebt: 310, CashAndEquivalents: 120, TotalEquity: 550, SharesOutstanding: 100},
		{Ticker: "ACME", FiscalYear: 2023, Revenue: 1250, OperatingIncome: 270, NetIncome: 190, DepreciationAmortization: 55, OperatingCashFlow: 320, CapitalExpenditure: -80, FreeCashFlow: 240, TotalDebt: 320, CashAndEquivalents: 150, TotalEquity: 600, SharesOutstanding: 100},
		{Ticker: "ACME", FiscalYear: 2024, Revenue: 1400, OperatingIncome: 310, NetIncome: 220, DepreciationAmortization: 60, OperatingCashFlow: 360, CapitalExpenditure: -90, FreeCashFlow: 270, TotalDebt: 330, CashAndEquivalents: 180, TotalEquity: 660, SharesOutstanding: 100},
	}
}

func TestNormalize(t *testing.T) {
	v, err := Normalize(acmeHistory())
	require.NoError(t, err)

	assert.Equal(t, "ACME", v.Ticker)
	assert.Equal(t, SchemaVersion, v.SchemaVersion)

	// Hand-computed from the 2024 snapshot (growth vs 2023, CAGR vs 2021).
	assert.InDelta(t, 0.12, v.Values[IdxRevenueGrowth], 1e-9)
	assert.InDelta(t, 0.118689, v.Values[IdxRevenueCAGR], 1e-4)
	assert.InDelta(t, 310.0/1400.0, v.Values[IdxOperatingMargin], 1e-9)
	assert.InDelta(t, 310.0/1400.0-0.2, v.Values[IdxMarginTrend], 1e-9)
	assert.InDelta(t, 220.0/1400.0, v.Values[IdxNetMargin], 1e-9)
	assert.InDelta(t, 270.0/1400.0, v.Values[IdxFCFMargin], 1e-9)
	assert.InDelta(t, 90.0/1400.0, v.Values[IdxCapexIntensity], 1e-9)
	assert.InDelta(t, 0.5, v.Values[IdxDebtToEquity], 1e-9)
	assert.InDelta(t, 150.0/370.0, v.Values[IdxNetDebtToEBITDA], 1e-9)
	assert.InDelta(t, 220.0/660.0, v.Values[IdxROE], 1e-9)

	assert.Zero(t, v.UnreliableCount())
}

func TestNormalizeOrderIndependent(t *testing.T) {
	snaps := acmeHistory()
	shuffled := []models.FinancialSnapshot{snaps[2], snaps[0], snaps[3], snaps[1]}

	a, err := Normalize(snaps)
	require.NoError(t, err)
	b, err := Normalize(shuffled)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNormalizeInsufficientData(t *testing.T) {
	_, err := Normalize(acmeHistory()[:1])
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "ACME", insufficient.Ticker)
	assert.Equal(t, 1, insufficient.Got)
	assert.Equal(t, MinPeriods, insufficient.Need)

	_, err = Normalize(nil)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Got)
}

func TestNormalizeZeroDenominators(t *testing.T) {
	snaps := []models.FinancialSnapshot{
		{Ticker: "ZERO", FiscalYear: 2023, Revenue: 100, OperatingIncome: 10, NetIncome: 5, TotalDebt: 50, CashAndEquivalents: 10, TotalEquity: 40},
		{Ticker: "ZERO", FiscalYear: 2024, Revenue: 0, OperatingIncome: 0, NetIncome: 0, TotalDebt: 50, CashAndEquivalents: 10, TotalEquity: 0},
	}

	v, err := Normalize(snaps)
	require.NoError(t, err)

	// Prior-year revenue is nonzero, so trailing growth survives.
	assert.InDelta(t, -1.0, v.Values[IdxRevenueGrowth], 1e-9)
	assert.False(t, v.Unreliable[IdxRevenueGrowth])

	flagged := []int{IdxRevenueCAGR, IdxOperatingMargin, IdxMarginTrend, IdxNetMargin,
		IdxFCFMargin, IdxCapexIntensity, IdxDebtToEquity, IdxNetDebtToEBITDA, IdxROE}
	for _, idx := range flagged {
		assert.True(t, v.Unreliable[idx], "feature %s should be flagged", featureNames[idx])
		assert.Zero(t, v.Values[idx], "feature %s should hold the sentinel", featureNames[idx])
	}
}

func TestComputeBasis(t *testing.T) {
	b, err := ComputeBasis(acmeHistory())
	require.NoError(t, err)

	assert.Equal(t, "ACME", b.Ticker)
	assert.InDelta(t, 1400.0, b.BaseRevenue, 1e-9)
	assert.InDelta(t, 150.0, b.NetDebt, 1e-9)
	assert.InDelta(t, 100.0, b.SharesOutstanding, 1e-9)
	assert.Equal(t, 4, b.Periods)

	// Growth observations: 0.10, 0.136364, 0.12.
	assert.InDelta(t, 0.118788, b.GrowthMean, 1e-4)
	assert.InDelta(t, 0.018212, b.GrowthStdDev, 1e-4)

	// FCF margins: 0.20, 0.190909, 0.192, 0.192857.
	assert.InDelta(t, 0.193942, b.FCFMarginMean, 1e-4)
	assert.InDelta(t, 0.004117, b.FCFMarginStdDev, 1e-4)
}

func TestComputeBasisInsufficientData(t *testing.T) {
	_, err := ComputeBasis(acmeHistory()[:1])
	var insufficient *InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}
