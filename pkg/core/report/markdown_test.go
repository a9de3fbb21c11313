package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/core/comps"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/simulation"
)

func fullReport() *aggregate.ValuationReport {
	price := 35.0
	upside := 0.1506
	return &aggregate.ValuationReport{
		ID:             "8f14e45f-ceea-4e3b-9c4d-1f0a2b3c4d5e",
		Ticker:         "TGT",
		GeneratedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		PointEstimate:  40.27,
		ConfidenceLow:  28.5,
		ConfidenceHigh: 50.5,
		Sources: []aggregate.SourceEstimate{
			{Name: aggregate.SourceSimulation, ValuePerShare: 38.5, Weight: 0.4, Available: true},
			{Name: aggregate.SourcePeers, ValuePerShare: 42.9, Weight: 0.3, Available: true},
			{Name: aggregate.SourceModel, ValuePerShare: 40, Weight: 0.3, Available: true},
		},
		Simulation: &aggregate.SimulationSummary{
			PerShare:        simulation.Percentiles{P5: 28.5, P25: 34.5, P50: 38.5, P75: 44.5, P95: 50.5},
			EnterpriseValue: simulation.Percentiles{P5: 3000, P25: 3600, P50: 4000, P75: 4600, P95: 5200},
			TrialsRequested: 10000,
			TrialsUsed:      9990,
			TrialsDropped:   10,
			Seed:            42,
		},
		Peers: &aggregate.PeerSummary{
			Set: &comps.PeerSet{
				Target: "TGT",
				Peers: []comps.Peer{
					{Ticker: "GRW1", Similarity: 0.92, Distance: 0.4},
					{Ticker: "GRW2", Similarity: 0.88, Distance: 0.6},
				},
			},
			MedianEVToEBITDA: 12,
			ImpliedPerShare:  42.9,
		},
		Model: &predictor.FairValueEstimate{
			ValuePerShare: 40,
			Confidence:    0.8,
			ModelVersion:  "lm-v1",
		},
		MarketPrice:   &price,
		UpsidePercent: &upside,
	}
}

func TestRenderMarkdownFullReport(t *testing.T) {
	md, err := RenderMarkdown(fullReport())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Valuation Report: TGT\n"))
	assert.Contains(t, md, "| Point estimate | $40.27 |")
	assert.Contains(t, md, "| Confidence interval | $28.50 to $50.50 |")
	assert.Contains(t, md, "| Market price | $35.00 |")
	assert.Contains(t, md, "| Upside | +15.1% |")
	assert.Contains(t, md, "| Sources disagree | no |")

	assert.Contains(t, md, "| simulation | $38.50 | 40% |")
	assert.Contains(t, md, "| P50 | $38.50 | $4000.00 |")
	assert.Contains(t, md, "9990 of 10000 trials survived (10 dropped), seed 42.")

	assert.Contains(t, md, "Median EV/EBITDA 12.0x, implying $42.90 per share.")
	assert.Contains(t, md, "| GRW1 | 0.92 |")
	assert.Contains(t, md, "lm-v1: $40.00 per share (confidence 0.80)")

	assert.NotContains(t, md, "## Warnings")
}

func TestRenderMarkdownDegradedReport(t *testing.T) {
	rep := fullReport()
	rep.Peers = nil
	rep.Model = nil
	rep.Disagreement = true
	rep.Sources[1].Available = false
	rep.Sources[1].ValuePerShare = 0
	rep.Sources[1].Weight = 0
	rep.Warnings = []string{"peer comparables unavailable", "model estimate unavailable"}

	md, err := RenderMarkdown(rep)
	require.NoError(t, err)

	assert.Contains(t, md, "| Sources disagree | yes |")
	assert.Contains(t, md, "| peers | n/a | 0% |")
	assert.Contains(t, md, "## Warnings")
	assert.Contains(t, md, "- peer comparables unavailable")
	assert.NotContains(t, md, "## Peer Comparables")
	assert.NotContains(t, md, "## Model Estimate")
}

func TestRenderMarkdownNegativeValues(t *testing.T) {
	rep := fullReport()
	rep.ConfidenceLow = -3.25

	md, err := RenderMarkdown(rep)
	require.NoError(t, err)
	assert.Contains(t, md, "-$3.25 to $50.50")
}

func TestRenderMarkdownRejectsBadReports(t *testing.T) {
	_, err := RenderMarkdown(nil)
	require.Error(t, err)

	_, err = RenderMarkdown(&aggregate.ValuationReport{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker")
}

func TestRenderJSONRoundTrip(t *testing.T) {
	rep := fullReport()

	data, err := RenderJSON(rep)
	require.NoError(t, err)

	var got aggregate.ValuationReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rep.Ticker, got.Ticker)
	assert.Equal(t, rep.PointEstimate, got.PointEstimate)
	require.NotNil(t, got.Simulation)
	assert.Equal(t, int64(42), got.Simulation.Seed)

	_, err = RenderJSON(nil)
	require.Error(t, err)
}

func TestValidateMarkdownCatchesEmptyOutput(t *testing.T) {
	require.Error(t, validateMarkdown(""))
	require.Error(t, validateMarkdown("   \n\t"))
	require.NoError(t, validateMarkdown("# Title\n\nbody\n"))
}
