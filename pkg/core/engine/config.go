package engine

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/core/comps"
	"quant_valuation/pkg/core/simulation"
)

// ===== ENGINE CONFIGURATION =====

// Config is the operator-facing engine configuration, loaded from YAML.
// Fields omitted from the file keep the DefaultConfig values.
type Config struct {
	Simulation  SimulationConfig  `yaml:"simulation"`
	Clustering  ClusteringConfig  `yaml:"clustering"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Market      MarketConfig      `yaml:"market"`
}

// SimulationConfig sets the Monte Carlo knobs. The optional pointer
// fields override the matching derived assumption for every request
// that does not carry explicit assumptions.
type SimulationConfig struct {
	TrialCount   int   `yaml:"trial_count" validate:"gte=1000"`
	HorizonYears int   `yaml:"horizon_years" validate:"gte=1,lte=30"`
	Workers      int   `yaml:"workers" validate:"gte=0"`
	RetryCap     int   `yaml:"retry_cap" validate:"gte=0"`
	Seed         int64 `yaml:"seed"`

	GrowthMean         *float64 `yaml:"growth_mean" validate:"omitempty,gte=-1,lte=2"`
	GrowthStdDev       *float64 `yaml:"growth_std_dev" validate:"omitempty,gte=0"`
	MarginMean         *float64 `yaml:"fcf_margin_mean" validate:"omitempty,gte=-1,lte=1"`
	MarginStdDev       *float64 `yaml:"fcf_margin_std_dev" validate:"omitempty,gte=0"`
	DiscountRateMean   *float64 `yaml:"discount_rate_mean" validate:"omitempty,gt=0,lte=1"`
	DiscountRateStdDev *float64 `yaml:"discount_rate_std_dev" validate:"omitempty,gte=0"`
	TerminalGrowth     *float64 `yaml:"terminal_growth" validate:"omitempty,gte=-0.05,lte=0.1"`
}

// ClusteringConfig mirrors comps.Config for the YAML surface.
type ClusteringConfig struct {
	K               int     `yaml:"k" validate:"gte=0"`
	MaxIterations   int     `yaml:"max_iterations" validate:"gte=1"`
	OutlierMultiple float64 `yaml:"outlier_multiple" validate:"gt=0"`
	MaxAutoK        int     `yaml:"max_auto_k" validate:"gte=2"`
	MaxPeers        int     `yaml:"max_peers" validate:"gte=1"`
	Workers         int     `yaml:"workers" validate:"gte=0"`
}

// AggregationConfig sets blend weights and the disagreement tolerance.
type AggregationConfig struct {
	Weights               aggregate.Weights `yaml:"weights"`
	DisagreementTolerance float64           `yaml:"disagreement_tolerance" validate:"gt=0,lte=1"`
}

// MarketConfig carries the market-level rates assumption derivation
// needs, plus the tax rate stamped onto profiles that lack one.
type MarketConfig struct {
	RiskFreeRate      float64 `yaml:"risk_free_rate" validate:"gte=0,lte=0.2"`
	EquityRiskPremium float64 `yaml:"equity_premium" validate:"gte=0,lte=0.2"`
	DefaultTaxRate    float64 `yaml:"default_tax_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	a := simulation.NewAssumptions()
	cc := comps.NewConfig()
	return &Config{
		Simulation: SimulationConfig{
			TrialCount:   a.TrialCount,
			HorizonYears: a.HorizonYears,
			Workers:      0,
			RetryCap:     5,
			Seed:         0,
		},
		Clustering: ClusteringConfig{
			K:               cc.K,
			MaxIterations:   cc.MaxIterations,
			OutlierMultiple: cc.OutlierMultiple,
			MaxAutoK:        cc.MaxAutoK,
			MaxPeers:        cc.MaxPeers,
			Workers:         cc.Workers,
		},
		Aggregation: AggregationConfig{
			Weights:               *aggregate.NewWeights(),
			DisagreementTolerance: 0.25,
		},
		Market: MarketConfig{
			RiskFreeRate:      0.042,
			EquityRiskPremium: 0.05,
			DefaultTaxRate:    0.21,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing engine config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field bounds and that the blend weights sum to one.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return c.Aggregation.Weights.Validate()
}

func (c *Config) clusterConfig() comps.Config {
	return comps.Config{
		K:               c.Clustering.K,
		MaxIterations:   c.Clustering.MaxIterations,
		OutlierMultiple: c.Clustering.OutlierMultiple,
		MaxAutoK:        c.Clustering.MaxAutoK,
		MaxPeers:        c.Clustering.MaxPeers,
		Workers:         c.Clustering.Workers,
	}
}

func (c *Config) marketContext() simulation.MarketContext {
	return simulation.MarketContext{
		RiskFreeRate:      c.Market.RiskFreeRate,
		EquityRiskPremium: c.Market.EquityRiskPremium,
	}
}

// applyOverrides overlays the configured distribution overrides onto
// derived assumptions.
func (c SimulationConfig) applyOverrides(a *simulation.Assumptions) {
	if c.GrowthMean != nil {
		a.GrowthMean = *c.GrowthMean
	}
	if c.GrowthStdDev != nil {
		a.GrowthStdDev = *c.GrowthStdDev
	}
	if c.MarginMean != nil {
		a.MarginMean = *c.MarginMean
	}
	if c.MarginStdDev != nil {
		a.MarginStdDev = *c.MarginStdDev
	}
	if c.DiscountRateMean != nil {
		a.DiscountRateMean = *c.DiscountRateMean
	}
	if c.DiscountRateStdDev != nil {
		a.DiscountRateStdDev = *c.DiscountRateStdDev
	}
	if c.TerminalGrowth != nil {
		a.TerminalGrowth = *c.TerminalGrowth
	}
}
