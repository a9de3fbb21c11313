package features

// =============================================================================
// FEATURE SCHEMA (versioned)
// =============================================================================
// The feature layout is fixed per schema version. Consumers (clustering,
// predictor) validate against this exact name order; changing the layout
// requires bumping SchemaVersion.

const SchemaVersion = 1

// Feature indices for schema version 1.
const (
	IdxRevenueGrowth = iota
	IdxRevenueCAGR
	IdxOperatingMargin
	IdxMarginTrend
	IdxNetMargin
	IdxFCFMargin
	IdxCapexIntensity
	IdxDebtToEquity
	IdxNetDebtToEBITDA
	IdxROE

	FeatureCount
)

var featureNames = [FeatureCount]string{
	"revenue_growth",
	"revenue_cagr",
	"operating_margin",
	"margin_trend",
	"net_margin",
	"fcf_margin",
	"capex_intensity",
	"debt_to_equity",
	"net_debt_to_ebitda",
	"roe",
}

// FeatureNames returns the ordered feature names for the current schema.
// The returned slice is a copy.
func FeatureNames() []string {
	names := make([]string, FeatureCount)
	copy(names, featureNames[:])
	return names
}

// Vector is the normalized feature representation of one company.
// Values are always finite: a feature whose inputs were unusable (zero
// denominator, sign-flipping base) holds the 0.0 sentinel and is marked
// in Unreliable.
type Vector struct {
	Ticker        string                `json:"ticker"`
	SchemaVersion int                   `json:"schema_version"`
	Values        [FeatureCount]float64 `json:"values"`
	Unreliable    [FeatureCount]bool    `json:"unreliable"`
}

// UnreliableCount reports how many features carry the sentinel.
func (v *Vector) UnreliableCount() int {
	n := 0
	for _, u := range v.Unreliable {
		if u {
			n++
		}
	}
	return n
}

// Basis carries the raw, unscaled statistics the Monte Carlo simulator
// draws from. These come straight from the snapshots; scaled features
// are never used for simulation.
type Basis struct {
	Ticker            string  `json:"ticker"`
	BaseRevenue       float64 `json:"base_revenue"`
	GrowthMean        float64 `json:"growth_mean"`
	GrowthStdDev      float64 `json:"growth_stddev"`
	FCFMarginMean     float64 `json:"fcf_margin_mean"`
	FCFMarginStdDev   float64 `json:"fcf_margin_stddev"`
	NetDebt           float64 `json:"net_debt"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	Periods           int     `json:"periods"`
}
