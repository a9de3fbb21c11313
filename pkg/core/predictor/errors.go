package predictor

import "fmt"

// FeatureSchemaError reports a mismatch between the model's expected
// feature layout and the engine's schema. No partial estimate is ever
// produced alongside it.
type FeatureSchemaError struct {
	WantCount int
	GotCount  int
	Field     string
}

func (e *FeatureSchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("feature schema mismatch at %q", e.Field)
	}
	return fmt.Sprintf("feature schema mismatch: model expects %d features, schema has %d", e.GotCount, e.WantCount)
}
