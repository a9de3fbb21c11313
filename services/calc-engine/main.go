// Command calc-engine is a spot-check sidecar for the Monte Carlo DCF:
// it reads one {basis, assumptions, seed} job as JSON, runs the
// deterministic point valuation and the full simulation, and prints the
// percentile band as JSON. Useful for verifying a report's simulation
// numbers outside the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"quant_valuation/pkg/core/features"
	"quant_valuation/pkg/core/simulation"
)

type Job struct {
	Basis       features.Basis          `json:"basis"`
	Assumptions *simulation.Assumptions `json:"assumptions,omitempty"`
	Seed        int64                   `json:"seed,omitempty"`
}

type Output struct {
	Deterministic float64                `json:"deterministic"`
	Percentiles   simulation.Percentiles `json:"percentiles"`
	TrialsUsed    int                    `json:"trials_used"`
	TrialsDropped int                    `json:"trials_dropped"`
	Redraws       int                    `json:"redraws"`
	Seed          int64                  `json:"seed"`
}

func main() {
	input := flag.String("input", "", "job JSON file (default: stdin)")
	workers := flag.Int("workers", 0, "simulation workers (0: all CPUs)")
	flag.Parse()

	data, err := readJob(*input)
	if err != nil {
		fail("reading job: %v", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		fail("parsing job: %v", err)
	}

	a := *simulation.NewAssumptions()
	if job.Assumptions != nil {
		a = *job.Assumptions
	}
	if err := a.Validate(); err != nil {
		fail("invalid assumptions: %v", err)
	}

	seed := job.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	det, err := simulation.Deterministic(job.Basis, a)
	if err != nil {
		fail("deterministic valuation: %v", err)
	}

	sim := simulation.NewSimulator(*workers, 0)
	res, err := sim.Run(context.Background(), job.Basis, a, seed)
	if err != nil {
		fail("simulation: %v", err)
	}

	out := Output{
		Deterministic: det,
		Percentiles:   res.Percentiles,
		TrialsUsed:    res.TrialsUsed,
		TrialsDropped: res.TrialsDropped,
		Redraws:       res.Redraws,
		Seed:          res.Seed,
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fail("encoding output: %v", err)
	}
	fmt.Println(string(encoded))
}

func readJob(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
