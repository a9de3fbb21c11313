package aggregate

import (
	"time"

	"quant_valuation/pkg/core/comps"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/simulation"
)

// Source names used in reports and disagreement warnings.
const (
	SourceSimulation = "simulation"
	SourcePeers      = "peers"
	SourceModel      = "model"
)

// SourceEstimate records one valuation source's per-share value and the
// weight actually applied after renormalization. Unavailable sources
// carry a zero weight and value.
type SourceEstimate struct {
	Name          string  `json:"name"`
	ValuePerShare float64 `json:"value_per_share"`
	Weight        float64 `json:"weight"`
	Available     bool    `json:"available"`
}

// SimulationSummary is the per-share view of the Monte Carlo band kept
// on the report. EnterpriseValue holds the raw simulated percentiles.
type SimulationSummary struct {
	PerShare        simulation.Percentiles `json:"per_share"`
	EnterpriseValue simulation.Percentiles `json:"enterprise_value"`
	TrialsRequested int                    `json:"trials_requested"`
	TrialsUsed      int                    `json:"trials_used"`
	TrialsDropped   int                    `json:"trials_dropped"`
	Seed            int64                  `json:"seed"`
}

// PeerSummary records the comparables context behind the peer-implied
// value.
type PeerSummary struct {
	Set              *comps.PeerSet `json:"set"`
	MedianEVToEBITDA float64        `json:"median_ev_to_ebitda"`
	ImpliedPerShare  float64        `json:"implied_per_share"`
}

// ValuationReport is the engine's final output for one company: a
// blended point estimate, a confidence interval, and the per-source
// diagnostics behind them. Immutable once constructed; downstream text
// generation consumes this struct and nothing else.
type ValuationReport struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	GeneratedAt time.Time `json:"generated_at"`

	PointEstimate  float64 `json:"point_estimate"`
	ConfidenceLow  float64 `json:"confidence_low"`
	ConfidenceHigh float64 `json:"confidence_high"`
	Disagreement   bool    `json:"disagreement"`

	Sources    []SourceEstimate             `json:"sources"`
	Simulation *SimulationSummary           `json:"simulation,omitempty"`
	Peers      *PeerSummary                 `json:"peers,omitempty"`
	Model      *predictor.FairValueEstimate `json:"model,omitempty"`

	MarketPrice   *float64 `json:"market_price,omitempty"`
	UpsidePercent *float64 `json:"upside_percent,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}
