// Command pipeline runs batch valuations: it resolves a target
// universe (stored tickers, a CSV, or the live constituents list),
// values each company against the rest of the store, persists the
// reports, and prints a summary table. With -cron it keeps running on
// a schedule.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/core/engine"
	"quant_valuation/pkg/core/ingest"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/store"
	"quant_valuation/pkg/models"
)

type batchOptions struct {
	csvPath     string
	fetch       bool
	tickers     string
	seed        int64
	concurrency int
}

type runner struct {
	cfg     *engine.Config
	eng     *engine.Engine
	fnd     *store.FundamentalsRepo
	reports *store.ReportRepo
	logger  log.Logger
	opts    batchOptions
}

func main() {
	godotenv.Load()

	var (
		cfgPath     = flag.String("config", "config/engine.yaml", "engine config file")
		modelPath   = flag.String("model", "config/model.json", "fitted model file")
		csvPath     = flag.String("csv", "", "constituents CSV restricting the targets")
		fetch       = flag.Bool("fetch", false, "restrict targets to the live constituents list")
		tickers     = flag.String("tickers", "", "comma-separated tickers to value (default: all stored)")
		seed        = flag.Int64("seed", 0, "simulation seed (0 uses the configured seed)")
		cronSpec    = flag.String("cron", "", "cron schedule for recurring runs (empty: run once)")
		loadPath    = flag.String("load", "", "fundamentals JSON file to import before running")
		concurrency = flag.Int("concurrency", 4, "concurrent company valuations")
	)
	flag.Parse()

	logger := log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true},
	}

	cfg, err := engine.LoadConfig(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *cfgPath).Msg("failed to load engine config")
	}

	var model predictor.Model
	if m, err := predictor.LoadModel(*modelPath); err != nil {
		logger.Warn().Err(err).Str("path", *modelPath).Msg("model unavailable, running without it")
	} else {
		model = m
	}

	eng, err := engine.New(*cfg, model, engine.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx, store.GetPool()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	r := &runner{
		cfg:     cfg,
		eng:     eng,
		fnd:     store.NewFundamentalsRepo(),
		reports: store.NewReportRepo(),
		logger:  logger,
		opts: batchOptions{
			csvPath:     *csvPath,
			fetch:       *fetch,
			tickers:     *tickers,
			seed:        *seed,
			concurrency: *concurrency,
		},
	}

	if *loadPath != "" {
		if err := r.importFundamentals(ctx, *loadPath); err != nil {
			logger.Fatal().Err(err).Str("path", *loadPath).Msg("import failed")
		}
	}

	if *cronSpec == "" {
		if err := r.runBatch(ctx); err != nil {
			logger.Fatal().Err(err).Msg("batch failed")
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*cronSpec, func() {
		if err := r.runBatch(ctx); err != nil {
			logger.Error().Err(err).Msg("scheduled batch failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", *cronSpec).Msg("invalid cron spec")
	}
	logger.Info().Str("spec", *cronSpec).Msg("scheduler started")
	c.Run()
}

type outcome struct {
	ticker string
	rep    *aggregate.ValuationReport
	err    error
}

func (r *runner) runBatch(ctx context.Context) error {
	runID := uuid.NewString()
	start := time.Now()

	histories, profiles, err := r.fnd.All(ctx)
	if err != nil {
		return err
	}
	if len(histories) == 0 {
		return fmt.Errorf("no fundamentals stored; import data with -load first")
	}

	targets, err := r.resolveTargets(ctx, histories)
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("run_id", runID).
		Int("targets", len(targets)).
		Int("universe", len(histories)).
		Msg("batch starting")

	results := make([]outcome, len(targets))

	// One goroutine per company; the trial loop inside the simulator is
	// already parallel, so the limit here only bounds memory.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for i, ticker := range targets {
		g.Go(func() error {
			rep, err := r.valuateOne(gctx, histories, profiles, ticker)
			if err == nil {
				if saveErr := r.reports.Save(gctx, rep); saveErr != nil {
					r.logger.Warn().Err(saveErr).Str("ticker", ticker).Msg("failed to persist report")
				}
			}
			results[i] = outcome{ticker: ticker, rep: rep, err: err}
			return nil
		})
	}
	g.Wait()

	printSummary(results, runID, time.Since(start))
	return nil
}

func (r *runner) valuateOne(ctx context.Context, histories map[string][]models.FinancialSnapshot, profiles map[string]models.CompanyProfile, ticker string) (*aggregate.ValuationReport, error) {
	profile := profiles[ticker]
	if profile.TaxRate == 0 {
		profile.TaxRate = r.cfg.Market.DefaultTaxRate
	}

	universe := make(map[string][]models.FinancialSnapshot, len(histories)-1)
	for t, h := range histories {
		if t != ticker {
			universe[t] = h
		}
	}

	req := engine.Request{
		Ticker:   ticker,
		History:  histories[ticker],
		Profile:  profile,
		Universe: universe,
		Profiles: profiles,
	}
	if r.opts.seed != 0 {
		s := r.opts.seed
		req.Seed = &s
	}
	if profile.CurrentPrice > 0 {
		p := profile.CurrentPrice
		req.MarketPrice = &p
	}
	return r.eng.Valuate(ctx, req)
}

// resolveTargets narrows the stored universe to the requested slate.
// Requested tickers without stored fundamentals are skipped with a
// warning rather than failing the whole batch.
func (r *runner) resolveTargets(ctx context.Context, histories map[string][]models.FinancialSnapshot) ([]string, error) {
	var requested []string
	switch {
	case r.opts.tickers != "":
		for _, t := range strings.Split(r.opts.tickers, ",") {
			if norm := ingest.NormalizeTicker(t); norm != "" {
				requested = append(requested, norm)
			}
		}
	case r.opts.csvPath != "":
		constituents, err := ingest.LoadConstituentsCSV(r.opts.csvPath)
		if err != nil {
			return nil, err
		}
		for _, c := range constituents {
			requested = append(requested, c.Ticker)
		}
	case r.opts.fetch:
		constituents, err := ingest.NewUniverseFetcher().Fetch(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range constituents {
			requested = append(requested, c.Ticker)
		}
	default:
		for t := range histories {
			requested = append(requested, t)
		}
	}

	targets := make([]string, 0, len(requested))
	for _, t := range requested {
		if _, ok := histories[t]; !ok {
			r.logger.Warn().Str("ticker", t).Msg("no stored fundamentals, skipping")
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no requested ticker has stored fundamentals")
	}
	sort.Strings(targets)
	return targets, nil
}

// importFundamentals loads a JSON file of {profile, snapshots} records
// into the store before the batch runs.
func (r *runner) importFundamentals(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var records []struct {
		Profile   models.CompanyProfile      `json:"profile"`
		Snapshots []models.FinancialSnapshot `json:"snapshots"`
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, rec := range records {
		if err := r.fnd.Save(ctx, rec.Profile, rec.Snapshots); err != nil {
			return fmt.Errorf("saving %s: %w", rec.Profile.Ticker, err)
		}
	}
	r.logger.Info().Int("companies", len(records)).Str("path", path).Msg("fundamentals imported")
	return nil
}

func printSummary(results []outcome, runID string, took time.Duration) {
	fmt.Println(strings.Repeat("-", 76))
	fmt.Printf("%-8s | %12s | %12s | %12s | %s\n", "Ticker", "Fair Value", "Low CI", "High CI", "Flags")
	fmt.Println(strings.Repeat("-", 76))

	succeeded := 0
	for _, res := range results {
		if res.err != nil {
			fmt.Printf("%-8s | %12s | %12s | %12s | %v\n", res.ticker, "-", "-", "-", res.err)
			continue
		}
		succeeded++

		var flags []string
		if res.rep.Disagreement {
			flags = append(flags, "disagreement")
		}
		if n := len(res.rep.Warnings); n > 0 {
			flags = append(flags, fmt.Sprintf("%d warnings", n))
		}
		fmt.Printf("%-8s | $%11.2f | $%11.2f | $%11.2f | %s\n",
			res.ticker, res.rep.PointEstimate, res.rep.ConfidenceLow, res.rep.ConfidenceHigh,
			strings.Join(flags, ", "))
	}

	fmt.Println(strings.Repeat("-", 76))
	fmt.Printf("Run %s: %d/%d succeeded in %s\n", runID, succeeded, len(results), took.Round(time.Millisecond))
}
