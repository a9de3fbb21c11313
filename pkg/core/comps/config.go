package comps

import "github.com/go-playground/validator/v10"

// Config controls clustering and peer selection.
type Config struct {
	// K fixes the cluster count; 0 selects it automatically by mean
	// silhouette over 2..min(MaxAutoK, sqrt(n)).
	K               int     `json:"k" validate:"gte=0"`
	MaxIterations   int     `json:"max_iterations" validate:"gte=1"`
	OutlierMultiple float64 `json:"outlier_multiple" validate:"gt=0"`
	MaxAutoK        int     `json:"max_auto_k" validate:"gte=2"`
	MaxPeers        int     `json:"max_peers" validate:"gte=1"`
	Workers         int     `json:"workers" validate:"gte=0"`
}

// NewConfig returns the default clustering configuration.
func NewConfig() *Config {
	return &Config{
		K:               0,
		MaxIterations:   50,
		OutlierMultiple: 3.0,
		MaxAutoK:        10,
		MaxPeers:        8,
		Workers:         0,
	}
}

// Validate checks configuration bounds.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
