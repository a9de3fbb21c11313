package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/phuslu/log"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/core/comps"
	"quant_valuation/pkg/core/features"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/simulation"
	"quant_valuation/pkg/models"
)

// ===== VALUATION ENGINE =====

// Request is one valuation job: the target company plus the universe it
// is judged against. All data arrives through the request; the engine
// performs no I/O.
type Request struct {
	Ticker  string
	History []models.FinancialSnapshot
	Profile models.CompanyProfile

	// Universe holds snapshot histories for comparable candidates,
	// keyed by ticker. The target's own history must not be repeated
	// here.
	Universe map[string][]models.FinancialSnapshot

	// Profiles supplies market caps for the peer multiple computation.
	// Peers without a profile are excluded from multiples.
	Profiles map[string]models.CompanyProfile

	// Assumptions bypasses derivation, config overrides, and the
	// active profile when set.
	Assumptions *simulation.Assumptions

	MarketPrice *float64

	// Seed pins the simulation; nil falls back to the configured seed,
	// and a zero configured seed draws from the clock.
	Seed *int64
}

// Engine wires the valuation stages together. Each Valuate call is
// self-contained; two sequential calls with equal requests and seeds
// produce identical numbers.
type Engine struct {
	cfg       Config
	model     predictor.Model
	sim       *simulation.Simulator
	clusterer *comps.Clusterer
	agg       *aggregate.Aggregator
	logger    log.Logger

	mu      sync.RWMutex
	profile *Profile
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithLogger replaces the default logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithProfile sets the initially active assumption profile.
func WithProfile(p *Profile) Option {
	return func(e *Engine) { e.profile = p }
}

// New validates the configuration and builds an engine. A nil model is
// allowed; the model source is then reported unavailable.
func New(cfg Config, model predictor.Model, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	agg, err := aggregate.NewAggregator(cfg.Aggregation.Weights, cfg.Aggregation.DisagreementTolerance)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		model:     model,
		sim:       simulation.NewSimulator(cfg.Simulation.Workers, cfg.Simulation.RetryCap),
		clusterer: comps.NewClusterer(cfg.clusterConfig()),
		agg:       agg,
		logger:    log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetProfile switches the active assumption profile. Nil returns to
// pure derivation.
func (e *Engine) SetProfile(p *Profile) {
	e.mu.Lock()
	e.profile = p
	e.mu.Unlock()
}

// ActiveProfile returns the currently applied profile, or nil.
func (e *Engine) ActiveProfile() *Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile
}

// Valuate runs the full pipeline for one company: feature extraction,
// assumption resolution, Monte Carlo simulation, comparables selection,
// model prediction, and aggregation.
//
// Failure policy: problems with the target itself (too little history,
// unstable simulation, model schema mismatch) fail the request with a
// typed error; problems with the universe (unusable members, clustering
// breakdown, no comparables) degrade to a report without the peer
// source.
func (e *Engine) Valuate(ctx context.Context, req Request) (*aggregate.ValuationReport, error) {
	if req.Ticker == "" {
		return nil, fmt.Errorf("valuation request is missing a ticker")
	}
	start := time.Now()

	targetVec, err := features.Normalize(req.History)
	if err != nil {
		return nil, fmt.Errorf("normalizing %s: %w", req.Ticker, err)
	}
	basis, err := features.ComputeBasis(req.History)
	if err != nil {
		return nil, fmt.Errorf("deriving simulation basis for %s: %w", req.Ticker, err)
	}

	scaled := e.scaledUniverse(req, targetVec)

	assumptions := e.resolveAssumptions(req, *basis)
	if err := assumptions.Validate(); err != nil {
		return nil, fmt.Errorf("assumptions for %s: %w", req.Ticker, err)
	}
	seed := e.resolveSeed(req)

	simResult, err := e.sim.Run(ctx, *basis, assumptions, seed)
	if err != nil {
		return nil, fmt.Errorf("simulating %s: %w", req.Ticker, err)
	}

	peerSet, err := e.selectPeers(ctx, req.Ticker, scaled, seed)
	if err != nil {
		return nil, err
	}

	var estimate *predictor.FairValueEstimate
	if e.model != nil {
		estimate, err = predictor.Predict(e.model, scaled[req.Ticker])
		if err != nil {
			return nil, fmt.Errorf("predicting %s: %w", req.Ticker, err)
		}
	}

	latest, _ := models.LatestSnapshot(req.History)
	rep, err := e.agg.Aggregate(aggregate.Inputs{
		Ticker:        req.Ticker,
		Simulation:    simResult,
		Peers:         peerSet,
		PeerMultiples: e.peerMultiples(peerSet, req),
		Estimate:      estimate,
		Target: aggregate.TargetFundamentals{
			EBITDA:            latest.EBITDA(),
			NetDebt:           basis.NetDebt,
			SharesOutstanding: basis.SharesOutstanding,
		},
		MarketPrice: req.MarketPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", req.Ticker, err)
	}

	e.logger.Info().
		Str("ticker", req.Ticker).
		Float64("point_estimate", rep.PointEstimate).
		Int("sources", len(availableSources(rep))).
		Bool("disagreement", rep.Disagreement).
		Int64("seed", seed).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("valuation complete")
	return rep, nil
}

// scaledUniverse extracts features for every usable universe member
// plus the target, fits the z-score scaler on that population, and
// returns the standardized vectors keyed by ticker. Members that fail
// normalization are logged and skipped.
func (e *Engine) scaledUniverse(req Request, targetVec *features.Vector) map[string]*features.Vector {
	raw := map[string]*features.Vector{req.Ticker: targetVec}
	for ticker, history := range req.Universe {
		if ticker == req.Ticker {
			continue
		}
		v, err := features.Normalize(history)
		if err != nil {
			e.logger.Warn().Str("ticker", ticker).Err(err).Msg("excluding company from universe")
			continue
		}
		raw[ticker] = v
	}

	// Population order is fixed by ticker so that mean and deviation
	// sums are reproducible across runs.
	tickers := make([]string, 0, len(raw))
	for t := range raw {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	population := make([]*features.Vector, 0, len(tickers))
	for _, t := range tickers {
		population = append(population, raw[t])
	}

	scaler := features.FitScaler(population)
	scaled := make(map[string]*features.Vector, len(raw))
	for t, v := range raw {
		scaled[t] = scaler.Transform(v)
	}
	return scaled
}

// resolveAssumptions picks the simulation configuration for a request:
// explicit request assumptions verbatim, otherwise derivation from the
// target's history layered with config overrides and the active
// profile.
func (e *Engine) resolveAssumptions(req Request, basis features.Basis) simulation.Assumptions {
	if req.Assumptions != nil {
		return *req.Assumptions
	}

	a := simulation.DeriveAssumptions(basis, req.Profile, e.cfg.marketContext())
	a.TrialCount = e.cfg.Simulation.TrialCount
	a.HorizonYears = e.cfg.Simulation.HorizonYears
	e.cfg.Simulation.applyOverrides(&a)

	if p := e.ActiveProfile(); p != nil {
		a = p.Apply(a)
	}
	return a
}

func (e *Engine) resolveSeed(req Request) int64 {
	if req.Seed != nil {
		return *req.Seed
	}
	if e.cfg.Simulation.Seed != 0 {
		return e.cfg.Simulation.Seed
	}
	return time.Now().UnixNano()
}

// selectPeers clusters the scaled universe and picks the target's
// comparables. Any failure short of context cancellation degrades to a
// nil peer set.
func (e *Engine) selectPeers(ctx context.Context, target string, scaled map[string]*features.Vector, seed int64) (*comps.PeerSet, error) {
	if len(scaled) < 2 {
		e.logger.Warn().Str("ticker", target).Int("universe_size", len(scaled)).Msg("universe too small for comparables")
		return nil, nil
	}

	asg, err := e.clusterer.Cluster(ctx, scaled, seed)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("clustering %s: %w", target, err)
		}
		e.logger.Warn().Str("ticker", target).Err(err).Msg("clustering failed, valuing without peers")
		return nil, nil
	}

	peers, err := comps.PeersFor(target, asg, scaled, e.cfg.Clustering.MaxPeers)
	if err != nil {
		e.logger.Warn().Str("ticker", target).Err(err).Msg("no comparables, valuing without peers")
		return nil, nil
	}
	return peers, nil
}

// peerMultiples prices each selected peer at enterprise value over
// trailing EBITDA. Peers without a profile, without a positive market
// cap, or with non-positive EBITDA are skipped.
func (e *Engine) peerMultiples(peers *comps.PeerSet, req Request) []aggregate.PeerMultiple {
	if peers == nil {
		return nil
	}
	out := make([]aggregate.PeerMultiple, 0, len(peers.Peers))
	for _, p := range peers.Peers {
		profile, ok := req.Profiles[p.Ticker]
		if !ok || profile.MarketCap <= 0 {
			continue
		}
		latest, ok := models.LatestSnapshot(req.Universe[p.Ticker])
		if !ok {
			continue
		}
		ebitda := latest.EBITDA()
		if ebitda <= 0 {
			continue
		}
		ev := profile.MarketCap + latest.NetDebt()
		out = append(out, aggregate.PeerMultiple{Ticker: p.Ticker, EVToEBITDA: ev / ebitda})
	}
	return out
}

func availableSources(rep *aggregate.ValuationReport) []string {
	var names []string
	for _, s := range rep.Sources {
		if s.Available {
			names = append(names, s.Name)
		}
	}
	return names
}
