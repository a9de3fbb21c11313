package predictor

import (
	"encoding/json"
	"fmt"
	"os"
)

// LinearModel is a pre-fitted linear regression over the feature
// schema, loaded from a JSON artifact produced offline. RSquared is
// reported as the model's confidence.
type LinearModel struct {
	ModelVersion string    `json:"model_version"`
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	RSquared     float64   `json:"r_squared"`
}

func (m *LinearModel) Version() string {
	return m.ModelVersion
}

func (m *LinearModel) FeatureNames() []string {
	names := make([]string, len(m.Features))
	copy(names, m.Features)
	return names
}

func (m *LinearModel) PredictValue(values []float64) float64 {
	out := m.Intercept
	for i, c := range m.Coefficients {
		if i >= len(values) {
			break
		}
		out += c * values[i]
	}
	return out
}

func (m *LinearModel) Confidence() float64 {
	return clamp01(m.RSquared)
}

// LoadModel reads a fitted model artifact from disk.
func LoadModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}
	if len(m.Features) != len(m.Coefficients) {
		return nil, fmt.Errorf("model artifact malformed: %d features but %d coefficients", len(m.Features), len(m.Coefficients))
	}
	return &m, nil
}
