package features

import (
	"math"

	"quant_valuation/pkg/models"
)

// MinPeriods is the smallest history that growth statistics can be
// computed from.
const MinPeriods = 2

// Normalize converts a company's snapshot history into a schema-v1
// feature vector. The history may arrive in any order. Fewer than
// MinPeriods snapshots returns *InsufficientDataError. Zero or
// sign-unstable denominators degrade to the 0.0 sentinel with the
// corresponding Unreliable flag set; the vector never contains NaN or
// Inf.
func Normalize(snaps []models.FinancialSnapshot) (*Vector, error) {
	if len(snaps) < MinPeriods {
		ticker := ""
		if len(snaps) > 0 {
			ticker = snaps[0].Ticker
		}
		return nil, &InsufficientDataError{Ticker: ticker, Got: len(snaps), Need: MinPeriods}
	}

	ordered := make([]models.FinancialSnapshot, len(snaps))
	copy(ordered, snaps)
	models.SortSnapshots(ordered)

	earliest := ordered[0]
	prior := ordered[len(ordered)-2]
	latest := ordered[len(ordered)-1]

	v := &Vector{Ticker: latest.Ticker, SchemaVersion: SchemaVersion}

	set := func(idx int, value float64, ok bool) {
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			v.Values[idx] = 0
			v.Unreliable[idx] = true
			return
		}
		v.Values[idx] = value
	}

	// Growth block
	set(IdxRevenueGrowth, growthRate(latest.Revenue, prior.Revenue), prior.Revenue != 0)

	span := latest.FiscalYear - earliest.FiscalYear
	set(IdxRevenueCAGR, cagr(latest.Revenue, earliest.Revenue, span),
		span > 0 && earliest.Revenue > 0 && latest.Revenue > 0)

	// Margin block
	opLatest, opLatestOK := ratio(latest.OperatingIncome, latest.Revenue)
	opEarliest, opEarliestOK := ratio(earliest.OperatingIncome, earliest.Revenue)
	set(IdxOperatingMargin, opLatest, opLatestOK)
	set(IdxMarginTrend, opLatest-opEarliest, opLatestOK && opEarliestOK)

	nm, nmOK := ratio(latest.NetIncome, latest.Revenue)
	set(IdxNetMargin, nm, nmOK)

	fm, fmOK := ratio(latest.FreeCashFlow, latest.Revenue)
	set(IdxFCFMargin, fm, fmOK)

	ci, ciOK := ratio(math.Abs(latest.CapitalExpenditure), latest.Revenue)
	set(IdxCapexIntensity, ci, ciOK)

	// Leverage and returns block
	de, deOK := ratio(latest.TotalDebt, latest.TotalEquity)
	set(IdxDebtToEquity, de, deOK)

	nde, ndeOK := ratio(latest.NetDebt(), latest.EBITDA())
	set(IdxNetDebtToEBITDA, nde, ndeOK)

	roe, roeOK := ratio(latest.NetIncome, latest.TotalEquity)
	set(IdxROE, roe, roeOK)

	return v, nil
}

// ComputeBasis extracts the raw growth and cash-margin statistics the
// simulator needs. Observations with a zero denominator are skipped;
// a history where nothing is observable still returns a Basis with
// zeroed statistics (assumption derivation applies floors).
func ComputeBasis(snaps []models.FinancialSnapshot) (*Basis, error) {
	if len(snaps) < MinPeriods {
		ticker := ""
		if len(snaps) > 0 {
			ticker = snaps[0].Ticker
		}
		return nil, &InsufficientDataError{Ticker: ticker, Got: len(snaps), Need: MinPeriods}
	}

	ordered := make([]models.FinancialSnapshot, len(snaps))
	copy(ordered, snaps)
	models.SortSnapshots(ordered)

	var growths, margins []float64
	for i, s := range ordered {
		if i > 0 && ordered[i-1].Revenue != 0 {
			growths = append(growths, growthRate(s.Revenue, ordered[i-1].Revenue))
		}
		if s.Revenue != 0 {
			margins = append(margins, s.FreeCashFlow/s.Revenue)
		}
	}

	latest := ordered[len(ordered)-1]
	gMean, gStd := meanStdDev(growths)
	mMean, mStd := meanStdDev(margins)

	return &Basis{
		Ticker:            latest.Ticker,
		BaseRevenue:       latest.Revenue,
		GrowthMean:        gMean,
		GrowthStdDev:      gStd,
		FCFMarginMean:     mMean,
		FCFMarginStdDev:   mStd,
		NetDebt:           latest.NetDebt(),
		SharesOutstanding: latest.SharesOutstanding,
		Periods:           len(ordered),
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func ratio(numerator, denominator float64) (float64, bool) {
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}

func growthRate(current, prior float64) float64 {
	if prior == 0 {
		return 0
	}
	return (current - prior) / math.Abs(prior)
}

func cagr(ending, beginning float64, years int) float64 {
	if beginning == 0 || years == 0 {
		return 0
	}
	return math.Pow(ending/beginning, 1.0/float64(years)) - 1
}

// meanStdDev returns the mean and sample standard deviation.
// Fewer than two observations yield a zero deviation.
func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
