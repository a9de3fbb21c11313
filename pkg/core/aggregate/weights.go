package aggregate

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

const weightSumTolerance = 1e-9

// Weights blends the three valuation sources into the point estimate.
// They must sum to 1; when a source is unavailable the remaining
// weights are renormalized at aggregation time.
type Weights struct {
	Simulation float64 `json:"simulation" validate:"gte=0,lte=1"`
	Peers      float64 `json:"peers" validate:"gte=0,lte=1"`
	Model      float64 `json:"model" validate:"gte=0,lte=1"`
}

// NewWeights returns the default source blend.
func NewWeights() *Weights {
	return &Weights{Simulation: 0.4, Peers: 0.3, Model: 0.3}
}

// Validate checks bounds and the unit-sum requirement.
func (w *Weights) Validate() error {
	validate := validator.New()
	if err := validate.Struct(w); err != nil {
		return err
	}
	sum := w.Simulation + w.Peers + w.Model
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1, got %.6f", sum)
	}
	return nil
}
