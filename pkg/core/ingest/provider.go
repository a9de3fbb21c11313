package ingest

import (
	"context"

	"quant_valuation/pkg/models"
)

// SnapshotProvider supplies per-company fundamentals to the pipeline
// and the API. The store implements it; callers depend on the
// interface so histories can also come from fixtures or caches.
type SnapshotProvider interface {
	History(ctx context.Context, ticker string) ([]models.FinancialSnapshot, models.CompanyProfile, error)
}
