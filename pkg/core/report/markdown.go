// Package report renders valuation reports for humans and API clients.
// The markdown renderer is the presentation layer over
// aggregate.ValuationReport; it adds no data of its own.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"

	"quant_valuation/pkg/core/aggregate"
)

// RenderMarkdown renders a report as a markdown document with a summary
// table, the simulation percentile band, the peer table, and any
// warnings. The output is parsed with goldmark before returning so a
// renderer bug surfaces here instead of in a client.
func RenderMarkdown(rep *aggregate.ValuationReport) (string, error) {
	if rep == nil {
		return "", fmt.Errorf("nil report")
	}
	if rep.Ticker == "" {
		return "", fmt.Errorf("report missing ticker")
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Valuation Report: %s\n\n", rep.Ticker))
	sb.WriteString(fmt.Sprintf("Generated %s", rep.GeneratedAt.UTC().Format(time.RFC3339)))
	if rep.ID != "" {
		sb.WriteString(fmt.Sprintf(" (run %s)", rep.ID))
	}
	sb.WriteString("\n\n")

	writeSummaryTable(&sb, rep)
	writeSourcesTable(&sb, rep.Sources)

	if rep.Simulation != nil {
		writeSimulationSection(&sb, rep.Simulation)
	}
	if rep.Peers != nil {
		writePeersSection(&sb, rep.Peers)
	}
	if rep.Model != nil {
		sb.WriteString("## Model Estimate\n\n")
		sb.WriteString(fmt.Sprintf("%s: %s per share (confidence %.2f)\n\n",
			rep.Model.ModelVersion, money(rep.Model.ValuePerShare), rep.Model.Confidence))
	}

	if len(rep.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range rep.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	md := sb.String()
	if err := validateMarkdown(md); err != nil {
		return "", fmt.Errorf("rendering report for %s: %w", rep.Ticker, err)
	}
	return md, nil
}

// RenderJSON marshals a report for API payloads.
func RenderJSON(rep *aggregate.ValuationReport) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("nil report")
	}
	return json.MarshalIndent(rep, "", "  ")
}

func writeSummaryTable(sb *strings.Builder, rep *aggregate.ValuationReport) {
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("| --- | --- |\n")
	sb.WriteString(fmt.Sprintf("| Point estimate | %s |\n", money(rep.PointEstimate)))
	sb.WriteString(fmt.Sprintf("| Confidence interval | %s to %s |\n",
		money(rep.ConfidenceLow), money(rep.ConfidenceHigh)))
	if rep.MarketPrice != nil {
		sb.WriteString(fmt.Sprintf("| Market price | %s |\n", money(*rep.MarketPrice)))
	}
	if rep.UpsidePercent != nil {
		sb.WriteString(fmt.Sprintf("| Upside | %+.1f%% |\n", *rep.UpsidePercent*100))
	}
	sb.WriteString(fmt.Sprintf("| Sources disagree | %s |\n", yesNo(rep.Disagreement)))
	sb.WriteString("\n")
}

func writeSourcesTable(sb *strings.Builder, sources []aggregate.SourceEstimate) {
	if len(sources) == 0 {
		return
	}
	sb.WriteString("## Sources\n\n")
	sb.WriteString("| Source | Value/Share | Weight |\n")
	sb.WriteString("| --- | --- | --- |\n")
	for _, s := range sources {
		if s.Available {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.0f%% |\n",
				s.Name, money(s.ValuePerShare), s.Weight*100))
		} else {
			sb.WriteString(fmt.Sprintf("| %s | n/a | 0%% |\n", s.Name))
		}
	}
	sb.WriteString("\n")
}

func writeSimulationSection(sb *strings.Builder, sim *aggregate.SimulationSummary) {
	sb.WriteString("## Monte Carlo Simulation\n\n")
	sb.WriteString("| Percentile | Per Share | Enterprise Value |\n")
	sb.WriteString("| --- | --- | --- |\n")
	rows := []struct {
		label string
		share float64
		ev    float64
	}{
		{"P5", sim.PerShare.P5, sim.EnterpriseValue.P5},
		{"P25", sim.PerShare.P25, sim.EnterpriseValue.P25},
		{"P50", sim.PerShare.P50, sim.EnterpriseValue.P50},
		{"P75", sim.PerShare.P75, sim.EnterpriseValue.P75},
		{"P95", sim.PerShare.P95, sim.EnterpriseValue.P95},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", r.label, money(r.share), money(r.ev)))
	}
	sb.WriteString(fmt.Sprintf("\n%d of %d trials survived (%d dropped), seed %d.\n\n",
		sim.TrialsUsed, sim.TrialsRequested, sim.TrialsDropped, sim.Seed))
}

func writePeersSection(sb *strings.Builder, peers *aggregate.PeerSummary) {
	sb.WriteString("## Peer Comparables\n\n")
	sb.WriteString(fmt.Sprintf("Median EV/EBITDA %.1fx, implying %s per share.\n\n",
		peers.MedianEVToEBITDA, money(peers.ImpliedPerShare)))
	if peers.Set == nil || len(peers.Set.Peers) == 0 {
		return
	}
	sb.WriteString("| Peer | Similarity |\n")
	sb.WriteString("| --- | --- |\n")
	for _, p := range peers.Set.Peers {
		sb.WriteString(fmt.Sprintf("| %s | %.2f |\n", p.Ticker, p.Similarity))
	}
	sb.WriteString("\n")
}

// validateMarkdown parses the document with goldmark. The parser is
// permissive, so this catches renderer bugs like empty output rather
// than style problems.
func validateMarkdown(md string) error {
	if strings.TrimSpace(md) == "" {
		return fmt.Errorf("empty markdown document")
	}
	doc := goldmark.DefaultParser().Parse(text.NewReader([]byte(md)))
	if doc == nil || !doc.HasChildren() {
		return fmt.Errorf("markdown failed to parse")
	}
	return nil
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
