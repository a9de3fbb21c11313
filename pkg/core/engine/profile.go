package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"

	"quant_valuation/pkg/core/simulation"
)

// Profile is a named set of assumption overrides authored in Hjson.
// Hjson keeps analyst files comment-friendly (unquoted keys, # and //
// comments, optional commas). Only fields present in the file override
// the derived assumptions; everything else passes through untouched.
type Profile struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	GrowthMean         *float64 `json:"growth_mean"`
	GrowthStdDev       *float64 `json:"growth_std_dev"`
	MarginMean         *float64 `json:"fcf_margin_mean"`
	MarginStdDev       *float64 `json:"fcf_margin_std_dev"`
	DiscountRateMean   *float64 `json:"discount_rate_mean"`
	DiscountRateStdDev *float64 `json:"discount_rate_std_dev"`
	TerminalGrowth     *float64 `json:"terminal_growth"`
	HorizonYears       *int     `json:"horizon_years"`
	TrialCount         *int     `json:"trial_count"`
}

// ParseProfile decodes one Hjson profile document.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := hjson.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing assumption profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("assumption profile is missing a name")
	}
	return &p, nil
}

// LoadProfile reads a single .hjson profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading assumption profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadProfiles reads every .hjson file in dir, keyed by profile name.
// Duplicate names across files are an error.
func LoadProfiles(dir string) (map[string]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading profile directory: %w", err)
	}

	profiles := make(map[string]*Profile)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hjson") {
			continue
		}
		p, err := LoadProfile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := profiles[p.Name]; dup {
			return nil, fmt.Errorf("duplicate assumption profile name %q in %s", p.Name, dir)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// Apply overlays the profile's set fields onto a and returns the result.
func (p *Profile) Apply(a simulation.Assumptions) simulation.Assumptions {
	if p.GrowthMean != nil {
		a.GrowthMean = *p.GrowthMean
	}
	if p.GrowthStdDev != nil {
		a.GrowthStdDev = *p.GrowthStdDev
	}
	if p.MarginMean != nil {
		a.MarginMean = *p.MarginMean
	}
	if p.MarginStdDev != nil {
		a.MarginStdDev = *p.MarginStdDev
	}
	if p.DiscountRateMean != nil {
		a.DiscountRateMean = *p.DiscountRateMean
	}
	if p.DiscountRateStdDev != nil {
		a.DiscountRateStdDev = *p.DiscountRateStdDev
	}
	if p.TerminalGrowth != nil {
		a.TerminalGrowth = *p.TerminalGrowth
	}
	if p.HorizonYears != nil {
		a.HorizonYears = *p.HorizonYears
	}
	if p.TrialCount != nil {
		a.TrialCount = *p.TrialCount
	}
	return a
}
