package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quant_valuation/pkg/models"
)

// FundamentalsRepo stores one row per company: its profile and full
// snapshot history as JSONB. It implements ingest.SnapshotProvider.
type FundamentalsRepo struct {
	pool *pgxpool.Pool
}

// NewFundamentalsRepo uses the shared pool initialized by InitDB.
func NewFundamentalsRepo() *FundamentalsRepo {
	return &FundamentalsRepo{}
}

// NewFundamentalsRepoWithPool injects a pool (tests, sidecars).
func NewFundamentalsRepoWithPool(pool *pgxpool.Pool) *FundamentalsRepo {
	return &FundamentalsRepo{pool: pool}
}

func (r *FundamentalsRepo) db() (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}
	if p := GetPool(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("database pool not initialized")
}

// Save upserts a company's profile and history, keyed by ticker. The
// stored history is merged with any existing one; newer fiscal years
// win on collision.
func (r *FundamentalsRepo) Save(ctx context.Context, profile models.CompanyProfile, snapshots []models.FinancialSnapshot) error {
	pool, err := r.db()
	if err != nil {
		return err
	}
	if profile.Ticker == "" {
		return fmt.Errorf("cannot save fundamentals without a ticker")
	}

	existing, _, err := r.History(ctx, profile.Ticker)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	merged := models.MergeHistories(existing, snapshots)

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	snapshotsJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}

	query := `
		INSERT INTO company_fundamentals (ticker, profile, snapshots, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker)
		DO UPDATE SET
			profile = EXCLUDED.profile,
			snapshots = EXCLUDED.snapshots,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := pool.Exec(ctx, query, profile.Ticker, profileJSON, snapshotsJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save fundamentals for %s: %w", profile.Ticker, err)
	}
	return nil
}

// History loads a company's snapshot history and profile.
func (r *FundamentalsRepo) History(ctx context.Context, ticker string) ([]models.FinancialSnapshot, models.CompanyProfile, error) {
	pool, err := r.db()
	if err != nil {
		return nil, models.CompanyProfile{}, err
	}

	var profileJSON, snapshotsJSON []byte
	query := `SELECT profile, snapshots FROM company_fundamentals WHERE ticker = $1`
	err = pool.QueryRow(ctx, query, ticker).Scan(&profileJSON, &snapshotsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.CompanyProfile{}, fmt.Errorf("no fundamentals for %s: %w", ticker, ErrNotFound)
		}
		return nil, models.CompanyProfile{}, fmt.Errorf("failed to load fundamentals for %s: %w", ticker, err)
	}

	var profile models.CompanyProfile
	if err := json.Unmarshal(profileJSON, &profile); err != nil {
		return nil, models.CompanyProfile{}, fmt.Errorf("failed to unmarshal profile for %s: %w", ticker, err)
	}
	var snapshots []models.FinancialSnapshot
	if err := json.Unmarshal(snapshotsJSON, &snapshots); err != nil {
		return nil, models.CompanyProfile{}, fmt.Errorf("failed to unmarshal snapshots for %s: %w", ticker, err)
	}

	models.SortSnapshots(snapshots)
	return snapshots, profile, nil
}

// Tickers lists every stored ticker, sorted.
func (r *FundamentalsRepo) Tickers(ctx context.Context) ([]string, error) {
	pool, err := r.db()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT ticker FROM company_fundamentals ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// All loads every stored company in one query. Valuation runs use this
// to assemble the comparables universe without a round trip per ticker.
func (r *FundamentalsRepo) All(ctx context.Context) (map[string][]models.FinancialSnapshot, map[string]models.CompanyProfile, error) {
	pool, err := r.db()
	if err != nil {
		return nil, nil, err
	}

	rows, err := pool.Query(ctx, `SELECT profile, snapshots FROM company_fundamentals`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fundamentals: %w", err)
	}
	defer rows.Close()

	histories := make(map[string][]models.FinancialSnapshot)
	profiles := make(map[string]models.CompanyProfile)
	for rows.Next() {
		var profileJSON, snapshotsJSON []byte
		if err := rows.Scan(&profileJSON, &snapshotsJSON); err != nil {
			return nil, nil, fmt.Errorf("failed to scan fundamentals row: %w", err)
		}

		var profile models.CompanyProfile
		if err := json.Unmarshal(profileJSON, &profile); err != nil {
			return nil, nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		var snaps []models.FinancialSnapshot
		if err := json.Unmarshal(snapshotsJSON, &snaps); err != nil {
			return nil, nil, fmt.Errorf("failed to decode snapshots for %s: %w", profile.Ticker, err)
		}
		models.SortSnapshots(snaps)

		histories[profile.Ticker] = snaps
		profiles[profile.Ticker] = profile
	}
	return histories, profiles, rows.Err()
}
