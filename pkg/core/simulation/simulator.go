package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"quant_valuation/pkg/core/features"
)

const (
	defaultRetryCap = 5
	maxWorkers      = 32

	// batchSize fixes the trial-to-RNG mapping. Workers race over
	// batches, never over individual trials, so results do not depend
	// on the worker count.
	batchSize = 1024

	// minSurvival is the fraction of requested trials that must produce
	// a valid enterprise value.
	minSurvival = 0.5
)

// Result holds one completed Monte Carlo run. Values are surviving
// per-trial enterprise values in deterministic trial order.
type Result struct {
	Values          []float64   `json:"values"`
	Percentiles     Percentiles `json:"percentiles"`
	TrialsRequested int         `json:"trials_requested"`
	TrialsUsed      int         `json:"trials_used"`
	TrialsDropped   int         `json:"trials_dropped"`
	Redraws         int         `json:"redraws"`
	Seed            int64       `json:"seed"`
}

// Simulator runs Monte Carlo DCF trials across a bounded worker pool.
// It holds no per-run state and is safe for concurrent use.
type Simulator struct {
	workers  int
	retryCap int
}

// NewSimulator builds a simulator. workers <= 0 selects NumCPU (capped);
// retryCap <= 0 selects the default redraw cap.
func NewSimulator(workers, retryCap int) *Simulator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if retryCap <= 0 {
		retryCap = defaultRetryCap
	}
	return &Simulator{workers: workers, retryCap: retryCap}
}

// Run executes a.TrialCount trials of the stochastic DCF for the given
// fundamentals. Each trial samples one discount rate and a yearly
// growth/margin path, projects free cash flow over the horizon and
// capitalizes the final year with Gordon growth. Invalid trials (rate
// at or below terminal growth, negative or non-finite terminal value)
// are redrawn up to the retry cap, then dropped. If fewer than half of
// the requested trials survive, the run fails with
// *SimulationUnstableError.
//
// The same seed and inputs produce an identical Result regardless of
// the worker count. Cancellation is observed between batches; a
// cancelled run returns an error and no partial result.
func (s *Simulator) Run(ctx context.Context, basis features.Basis, a Assumptions, seed int64) (*Result, error) {
	if a.TrialCount < 1 {
		return nil, fmt.Errorf("trial_count must be at least 1, got %d", a.TrialCount)
	}
	if a.HorizonYears < 1 {
		return nil, fmt.Errorf("horizon_years must be at least 1, got %d", a.HorizonYears)
	}
	if a.GrowthStdDev < 0 || a.MarginStdDev < 0 || a.DiscountRateStdDev < 0 {
		return nil, fmt.Errorf("distribution deviations must be non-negative")
	}

	numBatches := (a.TrialCount + batchSize - 1) / batchSize

	// NaN marks a dropped trial until compaction.
	values := make([]float64, a.TrialCount)
	dropped := make([]int, numBatches)
	redraws := make([]int, numBatches)
	completed := make([]bool, numBatches)

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.workers
	if workers > numBatches {
		workers = numBatches
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				if ctx.Err() != nil {
					continue
				}
				s.runBatch(b, values, dropped, redraws, basis, a, seed)
				completed[b] = true
			}
		}()
	}
	for b := 0; b < numBatches; b++ {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		done := 0
		for _, c := range completed {
			if c {
				done++
			}
		}
		return nil, fmt.Errorf("simulation cancelled after %d of %d batches: %w", done, numBatches, err)
	}

	survivors := make([]float64, 0, a.TrialCount)
	for _, v := range values {
		if !math.IsNaN(v) {
			survivors = append(survivors, v)
		}
	}
	totalDropped, totalRedraws := 0, 0
	for b := 0; b < numBatches; b++ {
		totalDropped += dropped[b]
		totalRedraws += redraws[b]
	}

	if float64(len(survivors)) < minSurvival*float64(a.TrialCount) {
		return nil, &SimulationUnstableError{Requested: a.TrialCount, Survived: len(survivors)}
	}

	return &Result{
		Values:          survivors,
		Percentiles:     computePercentiles(survivors),
		TrialsRequested: a.TrialCount,
		TrialsUsed:      len(survivors),
		TrialsDropped:   totalDropped,
		Redraws:         totalRedraws,
		Seed:            seed,
	}, nil
}

// runBatch executes one contiguous trial range with its own generator.
// It touches only this batch's segment of values and counter slots, so
// no synchronization beyond the WaitGroup is needed.
func (s *Simulator) runBatch(b int, values []float64, dropped, redraws []int, basis features.Basis, a Assumptions, seed int64) {
	rng := rand.New(rand.NewSource(batchSeed(seed, b)))
	lo := b * batchSize
	hi := lo + batchSize
	if hi > len(values) {
		hi = len(values)
	}
	for i := lo; i < hi; i++ {
		ev, used, ok := s.runTrial(rng, basis, a)
		redraws[b] += used
		if !ok {
			values[i] = math.NaN()
			dropped[b]++
			continue
		}
		values[i] = ev
	}
}

// runTrial attempts one trial, redrawing the full sample set on
// invalidity up to the retry cap. It reports the redraw count consumed.
func (s *Simulator) runTrial(rng *rand.Rand, basis features.Basis, a Assumptions) (float64, int, bool) {
	for attempt := 0; attempt <= s.retryCap; attempt++ {
		ev, ok := trial(rng, basis, a)
		if ok {
			return ev, attempt, true
		}
	}
	return 0, s.retryCap, false
}

// trial samples one complete DCF trajectory and returns its enterprise
// value, or ok=false when the draw is invalid.
func trial(rng *rand.Rand, basis features.Basis, a Assumptions) (float64, bool) {
	r := truncNorm(rng, a.DiscountRateMean, a.DiscountRateStdDev, minDiscountRate, maxDiscountRate)
	if r <= a.TerminalGrowth {
		return 0, false
	}

	revenue := basis.BaseRevenue
	discountFactor := 1.0
	pvFCF := 0.0
	finalFCF := 0.0

	for t := 1; t <= a.HorizonYears; t++ {
		g := truncNorm(rng, a.GrowthMean, a.GrowthStdDev, minGrowth, maxGrowth)
		m := truncNorm(rng, a.MarginMean, a.MarginStdDev, minMargin, maxMargin)

		revenue *= 1 + g
		fcf := revenue * m

		discountFactor /= 1 + r
		pvFCF += fcf * discountFactor
		finalFCF = fcf
	}

	// Gordon growth terminal value on the final projected year.
	tv := finalFCF * (1 + a.TerminalGrowth) / (r - a.TerminalGrowth)
	if tv < 0 || math.IsNaN(tv) || math.IsInf(tv, 0) {
		return 0, false
	}

	ev := pvFCF + tv*discountFactor
	if math.IsNaN(ev) || math.IsInf(ev, 0) {
		return 0, false
	}
	return ev, true
}
