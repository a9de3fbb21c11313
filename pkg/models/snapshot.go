package models

import (
	"sort"
)

// FinancialSnapshot is one fiscal period of reported fundamentals for a
// single company. Values are in reporting currency (millions) and are
// immutable once loaded; the engine never mutates a snapshot.
type FinancialSnapshot struct {
	Ticker     string `json:"ticker"`
	FiscalYear int    `json:"fiscal_year"`

	// Income statement
	Revenue                  float64 `json:"revenue"`
	OperatingIncome          float64 `json:"operating_income"`
	NetIncome                float64 `json:"net_income"`
	DepreciationAmortization float64 `json:"depreciation_amortization"`

	// Cash flow statement
	OperatingCashFlow  float64 `json:"operating_cash_flow"`
	CapitalExpenditure float64 `json:"capital_expenditure"` // negative by convention
	FreeCashFlow       float64 `json:"free_cash_flow"`

	// Balance sheet
	TotalDebt          float64 `json:"total_debt"`
	CashAndEquivalents float64 `json:"cash_and_equivalents"`
	TotalEquity        float64 `json:"total_equity"`

	SharesOutstanding float64 `json:"shares_outstanding"`
}

// NetDebt is total debt less cash. Can be negative for net-cash companies.
func (s FinancialSnapshot) NetDebt() float64 {
	return s.TotalDebt - s.CashAndEquivalents
}

// EBITDA approximates operating income plus depreciation and amortization.
func (s FinancialSnapshot) EBITDA() float64 {
	return s.OperatingIncome + s.DepreciationAmortization
}

// CompanyProfile carries per-company (not per-period) market context.
type CompanyProfile struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"company_name"`
	Sector       string  `json:"sector"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
	Beta         float64 `json:"beta"`
	TaxRate      float64 `json:"tax_rate"`
}

// SortSnapshots orders a history by fiscal year ascending, in place.
func SortSnapshots(snaps []FinancialSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].FiscalYear < snaps[j].FiscalYear
	})
}

// LatestSnapshot returns the snapshot with the highest fiscal year,
// or false when the history is empty.
func LatestSnapshot(snaps []FinancialSnapshot) (FinancialSnapshot, bool) {
	if len(snaps) == 0 {
		return FinancialSnapshot{}, false
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.FiscalYear > latest.FiscalYear {
			latest = s
		}
	}
	return latest, true
}

// MergeHistories combines two histories keyed by fiscal year. Entries in
// the second argument win on year collisions. The result is sorted
// ascending by fiscal year.
func MergeHistories(base, updates []FinancialSnapshot) []FinancialSnapshot {
	byYear := make(map[int]FinancialSnapshot, len(base)+len(updates))
	for _, s := range base {
		byYear[s.FiscalYear] = s
	}
	for _, s := range updates {
		byYear[s.FiscalYear] = s
	}

	merged := make([]FinancialSnapshot, 0, len(byYear))
	for _, s := range byYear {
		merged = append(merged, s)
	}
	SortSnapshots(merged)
	return merged
}
