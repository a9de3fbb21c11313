package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/models"
)

// testPool connects to TEST_DATABASE_URL and prepares the schema. Tests
// that need Postgres skip when the variable is unset so the suite stays
// runnable without a database.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

// uniqueTicker keeps concurrent test runs from colliding on the shared
// primary key.
func uniqueTicker(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func snapshotFor(ticker string, year int, revenue float64) models.FinancialSnapshot {
	return models.FinancialSnapshot{
		Ticker:             ticker,
		FiscalYear:         year,
		Revenue:            revenue,
		OperatingIncome:    revenue * 0.25,
		NetIncome:          revenue * 0.18,
		FreeCashFlow:       revenue * 0.20,
		TotalDebt:          revenue * 0.30,
		CashAndEquivalents: revenue * 0.10,
		SharesOutstanding:  100,
	}
}

func TestFundamentalsRepoRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewFundamentalsRepoWithPool(pool)

	ticker := uniqueTicker("FNDTST")
	profile := models.CompanyProfile{
		Ticker:    ticker,
		Name:      "Fundamentals Test Corp",
		Sector:    "Industrials",
		MarketCap: 5200,
		Beta:      1.1,
	}
	history := []models.FinancialSnapshot{
		snapshotFor(ticker, 2023, 1100),
		snapshotFor(ticker, 2022, 1000),
	}

	require.NoError(t, repo.Save(ctx, profile, history))

	got, gotProfile, err := repo.History(ctx, ticker)
	require.NoError(t, err)
	assert.Equal(t, profile, gotProfile)
	require.Len(t, got, 2)
	assert.Equal(t, 2022, got[0].FiscalYear)
	assert.Equal(t, 2023, got[1].FiscalYear)
	assert.Equal(t, 1100.0, got[1].Revenue)
}

func TestFundamentalsRepoMergesOnResave(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewFundamentalsRepoWithPool(pool)

	ticker := uniqueTicker("FNDMRG")
	profile := models.CompanyProfile{Ticker: ticker, Name: "Merge Corp"}

	require.NoError(t, repo.Save(ctx, profile, []models.FinancialSnapshot{
		snapshotFor(ticker, 2021, 900),
		snapshotFor(ticker, 2022, 950),
	}))

	// Restated 2022 plus a new 2023 year. The restatement must win and
	// 2021 must survive the second save.
	require.NoError(t, repo.Save(ctx, profile, []models.FinancialSnapshot{
		snapshotFor(ticker, 2022, 1000),
		snapshotFor(ticker, 2023, 1150),
	}))

	got, _, err := repo.History(ctx, ticker)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 900.0, got[0].Revenue)
	assert.Equal(t, 1000.0, got[1].Revenue)
	assert.Equal(t, 1150.0, got[2].Revenue)
}

func TestFundamentalsRepoNotFound(t *testing.T) {
	pool := testPool(t)
	repo := NewFundamentalsRepoWithPool(pool)

	_, _, err := repo.History(context.Background(), "NO-SUCH-TICKER")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFundamentalsRepoRejectsEmptyTicker(t *testing.T) {
	pool := testPool(t)
	repo := NewFundamentalsRepoWithPool(pool)

	err := repo.Save(context.Background(), models.CompanyProfile{}, nil)
	require.Error(t, err)
}

func TestFundamentalsRepoTickers(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewFundamentalsRepoWithPool(pool)

	a := uniqueTicker("TKRA")
	b := uniqueTicker("TKRB")
	for _, tk := range []string{b, a} {
		require.NoError(t, repo.Save(ctx, models.CompanyProfile{Ticker: tk},
			[]models.FinancialSnapshot{snapshotFor(tk, 2023, 500)}))
	}

	tickers, err := repo.Tickers(ctx)
	require.NoError(t, err)
	assert.Contains(t, tickers, a)
	assert.Contains(t, tickers, b)
	assert.IsIncreasing(t, tickers)
}

func TestFundamentalsRepoAll(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewFundamentalsRepoWithPool(pool)

	a := uniqueTicker("ALLA")
	b := uniqueTicker("ALLB")
	require.NoError(t, repo.Save(ctx, models.CompanyProfile{Ticker: a, Beta: 1.2},
		[]models.FinancialSnapshot{snapshotFor(a, 2023, 800), snapshotFor(a, 2022, 700)}))
	require.NoError(t, repo.Save(ctx, models.CompanyProfile{Ticker: b},
		[]models.FinancialSnapshot{snapshotFor(b, 2023, 400)}))

	histories, profiles, err := repo.All(ctx)
	require.NoError(t, err)

	require.Contains(t, histories, a)
	require.Contains(t, histories, b)
	assert.Equal(t, 2022, histories[a][0].FiscalYear)
	assert.Equal(t, 2023, histories[a][1].FiscalYear)
	assert.Equal(t, 1.2, profiles[a].Beta)
}

func TestReportRepoRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewReportRepoWithPool(pool)

	ticker := uniqueTicker("RPTTST")
	price := 35.0
	rep := &aggregate.ValuationReport{
		ID:             uuid.NewString(),
		Ticker:         ticker,
		GeneratedAt:    time.Now().UTC().Truncate(time.Microsecond),
		PointEstimate:  40.27,
		ConfidenceLow:  28.5,
		ConfidenceHigh: 50.5,
		Sources: []aggregate.SourceEstimate{
			{Name: "simulation", ValuePerShare: 38.5, Weight: 0.4, Available: true},
		},
		MarketPrice: &price,
		Warnings:    []string{"peer comparables unavailable"},
	}

	require.NoError(t, repo.Save(ctx, rep))

	got, err := repo.Latest(ctx, ticker)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, got.ID)
	assert.Equal(t, rep.PointEstimate, got.PointEstimate)
	assert.Equal(t, rep.Sources, got.Sources)
	assert.Equal(t, rep.Warnings, got.Warnings)
	require.NotNil(t, got.MarketPrice)
	assert.Equal(t, price, *got.MarketPrice)
}

func TestReportRepoUpsertReplacesPrevious(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewReportRepoWithPool(pool)

	ticker := uniqueTicker("RPTUPS")
	first := &aggregate.ValuationReport{
		ID:            uuid.NewString(),
		Ticker:        ticker,
		GeneratedAt:   time.Now().UTC(),
		PointEstimate: 40,
	}
	second := &aggregate.ValuationReport{
		ID:            uuid.NewString(),
		Ticker:        ticker,
		GeneratedAt:   time.Now().UTC(),
		PointEstimate: 45,
		Disagreement:  true,
	}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Latest(ctx, ticker)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 45.0, got.PointEstimate)
	assert.True(t, got.Disagreement)
}

func TestReportRepoNotFound(t *testing.T) {
	pool := testPool(t)
	repo := NewReportRepoWithPool(pool)

	_, err := repo.Latest(context.Background(), "NO-SUCH-TICKER")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReportRepoRejectsNilReport(t *testing.T) {
	pool := testPool(t)
	repo := NewReportRepoWithPool(pool)

	require.Error(t, repo.Save(context.Background(), nil))
	require.Error(t, repo.Save(context.Background(), &aggregate.ValuationReport{}))
}

func TestReposRequirePool(t *testing.T) {
	// No global pool is initialized in tests, so the zero-value repos
	// must fail loudly rather than panic.
	_, _, err := NewFundamentalsRepo().History(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool not initialized")

	_, err = NewReportRepo().Latest(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool not initialized")
}
