package summary

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_valuation/pkg/core/aggregate"
)

type fakeProvider struct {
	reply      string
	err        error
	lastSystem string
	lastPrompt string
}

func (f *fakeProvider) GenerateText(_ context.Context, systemPrompt, prompt string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func sampleReport() *aggregate.ValuationReport {
	price := 35.0
	upside := 0.1506
	return &aggregate.ValuationReport{
		ID:             "run-1",
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
		MarketPrice:   &price,
		UpsidePercent: &upside,
	}
}

func TestGenerateParsesCleanReply(t *testing.T) {
	fp := &fakeProvider{
		reply: `{"headline": "TGT looks modestly undervalued.", "rating": "undervalued", "bullets": ["Blended fair value 40.27 vs price 35.00"]}`,
	}
	g := NewGenerator(fp)

	c, err := g.Generate(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "TGT looks modestly undervalued.", c.Headline)
	assert.Equal(t, RatingUndervalued, c.Rating)
	require.Len(t, c.Bullets, 1)
}

func TestGenerateRepairsMessyReply(t *testing.T) {
	// Fenced block, single quotes, trailing comma: the usual LLM damage.
	fp := &fakeProvider{
		reply: "```json\n{'headline': 'Sources agree on TGT', 'rating': 'FAIRLY_VALUED', 'bullets': ['Interval 28.50 to 50.50',]}\n```",
	}
	g := NewGenerator(fp)

	c, err := g.Generate(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "Sources agree on TGT", c.Headline)
	assert.Equal(t, RatingFairlyValued, c.Rating)
}

func TestGeneratePromptUsesOnlyReportNumbers(t *testing.T) {
	fp := &fakeProvider{
		reply: `{"headline": "h", "rating": "overvalued", "bullets": []}`,
	}
	g := NewGenerator(fp)

	rep := sampleReport()
	rep.Warnings = []string{"peer comparables unavailable"}
	_, err := g.Generate(context.Background(), rep)
	require.NoError(t, err)

	assert.Contains(t, fp.lastPrompt, "Ticker: TGT")
	assert.Contains(t, fp.lastPrompt, "40.27")
	assert.Contains(t, fp.lastPrompt, "28.50 to 50.50")
	assert.Contains(t, fp.lastPrompt, "Upside vs market: 15.1%")
	assert.Contains(t, fp.lastPrompt, "Warning: peer comparables unavailable")
	assert.Contains(t, fp.lastSystem, "JSON")
}

func TestGenerateRejectsBadReplies(t *testing.T) {
	cases := map[string]string{
		"missing headline": `{"headline": "  ", "rating": "undervalued", "bullets": []}`,
		"unknown rating":   `{"headline": "h", "rating": "strong_buy", "bullets": []}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewGenerator(&fakeProvider{reply: reply})
			_, err := g.Generate(context.Background(), sampleReport())
			require.Error(t, err)
		})
	}
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	g := NewGenerator(&fakeProvider{err: fmt.Errorf("quota exhausted")})
	_, err := g.Generate(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestGenerateGuards(t *testing.T) {
	_, err := NewGenerator(nil).Generate(context.Background(), sampleReport())
	require.Error(t, err)

	_, err = NewGenerator(&fakeProvider{}).Generate(context.Background(), nil)
	require.Error(t, err)
}
