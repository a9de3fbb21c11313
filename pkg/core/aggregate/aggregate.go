package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"quant_valuation/pkg/core/comps"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/simulation"
)

const defaultDisagreementTolerance = 0.25

// TargetFundamentals are the target-side numbers peer multiples apply
// to and enterprise values convert through.
type TargetFundamentals struct {
	EBITDA            float64 `json:"ebitda"`
	NetDebt           float64 `json:"net_debt"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}

// PeerMultiple is one comparable's trading multiple, computed by the
// caller from market cap and fundamentals.
type PeerMultiple struct {
	Ticker     string  `json:"ticker"`
	EVToEBITDA float64 `json:"ev_to_ebitda"`
}

// Inputs collects the per-request artifacts to blend. Simulation, Peers
// and Estimate may each be nil when the producing stage failed; the
// aggregator degrades instead of failing as long as one source remains.
type Inputs struct {
	Ticker        string
	Simulation    *simulation.Result
	Peers         *comps.PeerSet
	PeerMultiples []PeerMultiple
	Estimate      *predictor.FairValueEstimate
	Target        TargetFundamentals
	MarketPrice   *float64
}

// Aggregator blends simulation, peer and model values into a
// ValuationReport.
type Aggregator struct {
	weights   Weights
	tolerance float64
}

// NewAggregator validates the weight blend. tolerance <= 0 selects the
// default 25% pairwise disagreement threshold.
func NewAggregator(w Weights, tolerance float64) (*Aggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregation weights: %w", err)
	}
	if tolerance <= 0 {
		tolerance = defaultDisagreementTolerance
	}
	return &Aggregator{weights: w, tolerance: tolerance}, nil
}

// Aggregate produces the final report. The point estimate is the
// weighted average of the available per-share sources with weights
// renormalized; the confidence interval is the union of the simulation
// [p5,p95] band and the model band (value +/- |value|*(1-confidence)),
// widened by the tolerance for every missing source. The disagreement
// flag is set when any two available sources differ by more than the
// tolerance relative to the larger magnitude, or when a source is
// missing.
func (g *Aggregator) Aggregate(in Inputs) (*ValuationReport, error) {
	shares := in.Target.SharesOutstanding
	if shares <= 0 {
		return nil, fmt.Errorf("aggregation requires positive shares outstanding, got %f", shares)
	}

	rep := &ValuationReport{
		ID:          uuid.New().String(),
		Ticker:      in.Ticker,
		GeneratedAt: time.Now().UTC(),
		MarketPrice: in.MarketPrice,
	}

	perShare := func(enterpriseValue float64) float64 {
		return (enterpriseValue - in.Target.NetDebt) / shares
	}

	values := map[string]float64{}

	if in.Simulation != nil {
		values[SourceSimulation] = perShare(in.Simulation.Percentiles.P50)
		rep.Simulation = &SimulationSummary{
			PerShare: simulation.Percentiles{
				P5:  perShare(in.Simulation.Percentiles.P5),
				P25: perShare(in.Simulation.Percentiles.P25),
				P50: perShare(in.Simulation.Percentiles.P50),
				P75: perShare(in.Simulation.Percentiles.P75),
				P95: perShare(in.Simulation.Percentiles.P95),
			},
			EnterpriseValue: in.Simulation.Percentiles,
			TrialsRequested: in.Simulation.TrialsRequested,
			TrialsUsed:      in.Simulation.TrialsUsed,
			TrialsDropped:   in.Simulation.TrialsDropped,
			Seed:            in.Simulation.Seed,
		}
	} else {
		rep.Warnings = append(rep.Warnings, "simulation unavailable")
	}

	if median, ok := medianMultiple(in.PeerMultiples); ok && in.Peers != nil && len(in.Peers.Peers) > 0 && in.Target.EBITDA > 0 {
		implied := perShare(median * in.Target.EBITDA)
		values[SourcePeers] = implied
		rep.Peers = &PeerSummary{Set: in.Peers, MedianEVToEBITDA: median, ImpliedPerShare: implied}
	} else {
		rep.Warnings = append(rep.Warnings, "peer comparables unavailable")
	}

	if in.Estimate != nil {
		values[SourceModel] = in.Estimate.ValuePerShare
		rep.Model = in.Estimate
	} else {
		rep.Warnings = append(rep.Warnings, "model estimate unavailable")
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no valuation sources available for %s", in.Ticker)
	}

	rep.PointEstimate, rep.Sources = g.blend(values)
	rep.ConfidenceLow, rep.ConfidenceHigh = g.interval(rep, values)
	rep.Disagreement = g.disagrees(values) || len(values) < 3

	if in.MarketPrice != nil && *in.MarketPrice > 0 {
		upside := (rep.PointEstimate - *in.MarketPrice) / *in.MarketPrice
		rep.UpsidePercent = &upside
	}

	return rep, nil
}

// blend renormalizes the configured weights over the available sources
// and returns the weighted point estimate plus the per-source records.
func (g *Aggregator) blend(values map[string]float64) (float64, []SourceEstimate) {
	configured := map[string]float64{
		SourceSimulation: g.weights.Simulation,
		SourcePeers:      g.weights.Peers,
		SourceModel:      g.weights.Model,
	}

	var weightSum float64
	for name := range values {
		weightSum += configured[name]
	}

	var point float64
	sources := make([]SourceEstimate, 0, 3)
	for _, name := range []string{SourceSimulation, SourcePeers, SourceModel} {
		value, ok := values[name]
		if !ok {
			sources = append(sources, SourceEstimate{Name: name})
			continue
		}
		var applied float64
		if weightSum > 0 {
			applied = configured[name] / weightSum
		} else {
			applied = 1.0 / float64(len(values))
		}
		point += applied * value
		sources = append(sources, SourceEstimate{Name: name, ValuePerShare: value, Weight: applied, Available: true})
	}
	return point, sources
}

// interval builds the confidence band: the union of the simulation
// [p5,p95] per-share band and the model sigma band, padded by
// tolerance*|point| per missing source. The result always contains the
// simulation band when simulation ran.
func (g *Aggregator) interval(rep *ValuationReport, values map[string]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)

	if rep.Simulation != nil {
		lo = math.Min(lo, rep.Simulation.PerShare.P5)
		hi = math.Max(hi, rep.Simulation.PerShare.P95)
	}
	if rep.Model != nil {
		sigma := math.Abs(rep.Model.ValuePerShare) * (1 - rep.Model.Confidence)
		lo = math.Min(lo, rep.Model.ValuePerShare-sigma)
		hi = math.Max(hi, rep.Model.ValuePerShare+sigma)
	}
	if math.IsInf(lo, 1) {
		// Peers-only degenerate case.
		lo, hi = rep.PointEstimate, rep.PointEstimate
	}

	pad := g.tolerance * math.Abs(rep.PointEstimate)
	for missing := 3 - len(values); missing > 0; missing-- {
		lo -= pad
		hi += pad
	}
	return lo, hi
}

// disagrees checks every pair of available sources against the
// tolerance, relative to the larger magnitude.
func (g *Aggregator) disagrees(values map[string]float64) bool {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := values[names[i]], values[names[j]]
			denom := math.Max(math.Abs(a), math.Abs(b))
			if denom == 0 {
				continue
			}
			if math.Abs(a-b)/denom > g.tolerance {
				return true
			}
		}
	}
	return false
}

// medianMultiple computes the median over positive multiples only;
// negative-EBITDA peers are excluded.
func medianMultiple(multiples []PeerMultiple) (float64, bool) {
	var xs []float64
	for _, m := range multiples {
		if m.EVToEBITDA > 0 {
			xs = append(xs, m.EVToEBITDA)
		}
	}
	if len(xs) == 0 {
		return 0, false
	}
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[mid], true
	}
	return (xs[mid-1] + xs[mid]) / 2, true
}
