package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"quant_valuation/pkg/core/aggregate"
)

// Rating values the model is instructed to choose from.
const (
	RatingUndervalued  = "undervalued"
	RatingFairlyValued = "fairly_valued"
	RatingOvervalued   = "overvalued"
)

// Commentary is the structured narrative extracted from the model's
// JSON reply.
type Commentary struct {
	Headline string   `json:"headline"`
	Rating   string   `json:"rating"`
	Bullets  []string `json:"bullets"`
}

const systemPrompt = `You are an equity analyst summarizing the output of a quantitative valuation engine.
Use ONLY the numbers provided in the prompt. Do not invent data, news, or qualitative claims.
Respond with a single JSON object: {"headline": string, "rating": "undervalued"|"fairly_valued"|"overvalued", "bullets": [string, ...]}.
The headline is one sentence. Each bullet cites a number from the prompt. No markdown, no prose outside the JSON.`

// Generator produces commentary for valuation reports through a
// Provider.
type Generator struct {
	provider Provider
}

func NewGenerator(p Provider) *Generator {
	return &Generator{provider: p}
}

// Generate asks the provider to narrate a report and parses the reply.
// LLM output is never trusted to be valid JSON: the reply goes through
// json-repair before unmarshaling, and the parsed fields are checked
// against the rating vocabulary.
func (g *Generator) Generate(ctx context.Context, rep *aggregate.ValuationReport) (*Commentary, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("no provider configured")
	}
	if rep == nil {
		return nil, fmt.Errorf("nil report")
	}

	raw, err := g.provider.GenerateText(ctx, systemPrompt, buildPrompt(rep))
	if err != nil {
		return nil, fmt.Errorf("generating commentary for %s: %w", rep.Ticker, err)
	}

	repaired, err := jsonrepair.RepairJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("repairing commentary JSON for %s: %w", rep.Ticker, err)
	}

	var c Commentary
	if err := json.Unmarshal([]byte(repaired), &c); err != nil {
		return nil, fmt.Errorf("parsing commentary for %s: %w", rep.Ticker, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("commentary for %s: %w", rep.Ticker, err)
	}
	return &c, nil
}

func (c *Commentary) validate() error {
	if strings.TrimSpace(c.Headline) == "" {
		return fmt.Errorf("missing headline")
	}
	c.Rating = strings.ToLower(strings.TrimSpace(c.Rating))
	switch c.Rating {
	case RatingUndervalued, RatingFairlyValued, RatingOvervalued:
	default:
		return fmt.Errorf("unexpected rating %q", c.Rating)
	}
	return nil
}

// buildPrompt flattens the report into labeled numbers. Everything the
// model sees comes from the report struct.
func buildPrompt(rep *aggregate.ValuationReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Ticker: %s\n", rep.Ticker))
	sb.WriteString(fmt.Sprintf("Blended fair value per share: %.2f\n", rep.PointEstimate))
	sb.WriteString(fmt.Sprintf("Confidence interval: %.2f to %.2f\n", rep.ConfidenceLow, rep.ConfidenceHigh))
	if rep.MarketPrice != nil {
		sb.WriteString(fmt.Sprintf("Market price: %.2f\n", *rep.MarketPrice))
	}
	if rep.UpsidePercent != nil {
		sb.WriteString(fmt.Sprintf("Upside vs market: %.1f%%\n", *rep.UpsidePercent*100))
	}
	sb.WriteString(fmt.Sprintf("Sources disagree: %t\n", rep.Disagreement))

	for _, s := range rep.Sources {
		if s.Available {
			sb.WriteString(fmt.Sprintf("Source %s: %.2f per share, weight %.0f%%\n",
				s.Name, s.ValuePerShare, s.Weight*100))
		} else {
			sb.WriteString(fmt.Sprintf("Source %s: unavailable\n", s.Name))
		}
	}

	if sim := rep.Simulation; sim != nil {
		sb.WriteString(fmt.Sprintf("Simulation per-share band: P5 %.2f, P50 %.2f, P95 %.2f (%d trials used, %d dropped)\n",
			sim.PerShare.P5, sim.PerShare.P50, sim.PerShare.P95, sim.TrialsUsed, sim.TrialsDropped))
	}
	if peers := rep.Peers; peers != nil {
		sb.WriteString(fmt.Sprintf("Peer median EV/EBITDA: %.1f, implied per share: %.2f\n",
			peers.MedianEVToEBITDA, peers.ImpliedPerShare))
		if peers.Set != nil && len(peers.Set.Peers) > 0 {
			sb.WriteString(fmt.Sprintf("Peers: %s\n", strings.Join(peers.Set.Tickers(), ", ")))
		}
	}
	if rep.Model != nil {
		sb.WriteString(fmt.Sprintf("Model %s estimate: %.2f per share, confidence %.2f\n",
			rep.Model.ModelVersion, rep.Model.ValuePerShare, rep.Model.Confidence))
	}

	for _, w := range rep.Warnings {
		sb.WriteString(fmt.Sprintf("Warning: %s\n", w))
	}

	return sb.String()
}
