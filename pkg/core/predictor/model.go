package predictor

// FairValueEstimate is a fitted model's per-share estimate for one
// company.
type FairValueEstimate struct {
	ValuePerShare float64 `json:"value_per_share"`
	Confidence    float64 `json:"confidence"`
	ModelVersion  string  `json:"model_version"`
}

// Model is the capability a pre-fitted fair-value model exposes to the
// engine. The engine treats it as opaque: it validates the feature
// schema, forwards the vector, and wraps the output. Training is out of
// scope.
type Model interface {
	Version() string
	FeatureNames() []string
	PredictValue(values []float64) float64
}

// ConfidenceReporter is optionally implemented by models that carry a
// fit-quality signal. Models without it get the neutral default.
type ConfidenceReporter interface {
	Confidence() float64
}

const neutralConfidence = 0.5
