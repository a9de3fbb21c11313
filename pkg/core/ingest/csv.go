package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"quant_valuation/pkg/models"
)

// LoadConstituentsCSV reads a ticker,name,sector file for air-gapped
// runs. A header row starting with "ticker" is skipped; name and
// sector columns are optional.
func LoadConstituentsCSV(path string) ([]models.CompanyProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening constituents csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading constituents csv: %w", err)
	}

	var profiles []models.CompanyProfile
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "ticker") {
			continue
		}
		ticker := NormalizeTicker(rec[0])
		if ticker == "" {
			continue
		}
		p := models.CompanyProfile{Ticker: ticker}
		if len(rec) > 1 {
			p.Name = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			p.Sector = strings.TrimSpace(rec[2])
		}
		profiles = append(profiles, p)
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("constituents csv %s had no usable rows", path)
	}
	return profiles, nil
}
