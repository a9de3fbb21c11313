package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigOverDefaults(t *testing.T) {
	path := writeConfig(t, `
simulation:
  trial_count: 50000
  workers: 8
  seed: 42
  terminal_growth: 0.02
clustering:
  max_peers: 5
aggregation:
  weights:
    simulation: 0.5
    peers: 0.25
    model: 0.25
  disagreement_tolerance: 0.2
market:
  risk_free_rate: 0.04
  equity_premium: 0.055
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50000, cfg.Simulation.TrialCount)
	assert.Equal(t, 8, cfg.Simulation.Workers)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	require.NotNil(t, cfg.Simulation.TerminalGrowth)
	assert.InDelta(t, 0.02, *cfg.Simulation.TerminalGrowth, 1e-12)
	assert.Nil(t, cfg.Simulation.GrowthMean, "unset overrides stay nil")

	// Omitted fields keep defaults.
	assert.Equal(t, 5, cfg.Simulation.HorizonYears)
	assert.Equal(t, 50, cfg.Clustering.MaxIterations)
	assert.Equal(t, 0.21, cfg.Market.DefaultTaxRate)

	assert.Equal(t, 5, cfg.Clustering.MaxPeers)
	assert.InDelta(t, 0.5, cfg.Aggregation.Weights.Simulation, 1e-12)
	assert.InDelta(t, 0.2, cfg.Aggregation.DisagreementTolerance, 1e-12)
	assert.InDelta(t, 0.055, cfg.Market.EquityRiskPremium, 1e-12)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := writeConfig(t, "simulation:\n  trial_count: 10\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
aggregation:
  weights:
    simulation: 0.5
    peers: 0.2
    model: 0.2
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "simulation: [unclosed\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
