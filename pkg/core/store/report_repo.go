package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quant_valuation/pkg/core/aggregate"
)

// ReportRepo keeps the latest valuation report per ticker, with the
// point estimate and disagreement flag broken out for cheap scans.
type ReportRepo struct {
	pool *pgxpool.Pool
}

// NewReportRepo uses the shared pool initialized by InitDB.
func NewReportRepo() *ReportRepo {
	return &ReportRepo{}
}

// NewReportRepoWithPool injects a pool (tests, sidecars).
func NewReportRepoWithPool(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) db() (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}
	if p := GetPool(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("database pool not initialized")
}

// Save upserts the latest report for its ticker.
func (r *ReportRepo) Save(ctx context.Context, rep *aggregate.ValuationReport) error {
	pool, err := r.db()
	if err != nil {
		return err
	}
	if rep == nil || rep.Ticker == "" {
		return fmt.Errorf("cannot save a report without a ticker")
	}

	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO valuation_reports (ticker, report, point_estimate, disagreement, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticker)
		DO UPDATE SET
			report = EXCLUDED.report,
			point_estimate = EXCLUDED.point_estimate,
			disagreement = EXCLUDED.disagreement,
			created_at = EXCLUDED.created_at;
	`
	if _, err := pool.Exec(ctx, query, rep.Ticker, reportJSON, rep.PointEstimate, rep.Disagreement, rep.GeneratedAt); err != nil {
		return fmt.Errorf("failed to save report for %s: %w", rep.Ticker, err)
	}
	return nil
}

// Latest fetches the stored report for a ticker.
func (r *ReportRepo) Latest(ctx context.Context, ticker string) (*aggregate.ValuationReport, error) {
	pool, err := r.db()
	if err != nil {
		return nil, err
	}

	var reportJSON []byte
	err = pool.QueryRow(ctx, `SELECT report FROM valuation_reports WHERE ticker = $1`, ticker).Scan(&reportJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no report for %s: %w", ticker, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load report for %s: %w", ticker, err)
	}

	var rep aggregate.ValuationReport
	if err := json.Unmarshal(reportJSON, &rep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report for %s: %w", ticker, err)
	}
	return &rep, nil
}
