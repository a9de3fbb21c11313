package predictor

import (
	"quant_valuation/pkg/core/features"
)

// Predict validates the model's feature layout against the engine
// schema and the vector's schema version, then wraps the model output
// with its confidence (or the neutral default). Any mismatch returns
// *FeatureSchemaError and no estimate.
func Predict(m Model, v *features.Vector) (*FairValueEstimate, error) {
	names := m.FeatureNames()
	if len(names) != features.FeatureCount {
		return nil, &FeatureSchemaError{WantCount: features.FeatureCount, GotCount: len(names)}
	}
	schema := features.FeatureNames()
	for i, name := range names {
		if name != schema[i] {
			return nil, &FeatureSchemaError{WantCount: features.FeatureCount, GotCount: len(names), Field: name}
		}
	}
	if v.SchemaVersion != features.SchemaVersion {
		return nil, &FeatureSchemaError{WantCount: features.SchemaVersion, GotCount: v.SchemaVersion, Field: "schema_version"}
	}

	confidence := neutralConfidence
	if cr, ok := m.(ConfidenceReporter); ok {
		confidence = clamp01(cr.Confidence())
	}

	return &FairValueEstimate{
		ValuePerShare: m.PredictValue(v.Values[:]),
		Confidence:    confidence,
		ModelVersion:  m.Version(),
	}, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
