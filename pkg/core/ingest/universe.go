// Package ingest resolves the valuation universe: which companies exist,
// and where their fundamentals come from.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"quant_valuation/pkg/models"
)

const (
	// DefaultConstituentsURL lists the S&P 500 members with ticker,
	// security name, and GICS sector in the first wikitable.
	DefaultConstituentsURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

	// DefaultTimeout is the HTTP timeout for universe fetches.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the polite request rate (requests per second).
	DefaultRateLimit = 2

	userAgent = "quant-valuation/1.0 (research tool; contact@example.com)"
)

// UniverseFetcher downloads and parses the constituent list.
type UniverseFetcher struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// FetcherOption configures a UniverseFetcher.
type FetcherOption func(*UniverseFetcher)

// WithURL points the fetcher at a different constituent list.
func WithURL(url string) FetcherOption {
	return func(f *UniverseFetcher) { f.url = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *UniverseFetcher) { f.httpClient = client }
}

// WithRateLimit sets a custom request rate.
func WithRateLimit(requestsPerSecond int) FetcherOption {
	return func(f *UniverseFetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewUniverseFetcher creates a fetcher with polite defaults.
func NewUniverseFetcher(opts ...FetcherOption) *UniverseFetcher {
	f := &UniverseFetcher{
		url: DefaultConstituentsURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the constituent table and returns profile skeletons
// (ticker, name, sector; market data is filled in elsewhere).
func (f *UniverseFetcher) Fetch(ctx context.Context) ([]models.CompanyProfile, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("universe fetch rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("universe fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("universe source returned status %d", resp.StatusCode)
	}

	return ParseConstituents(resp.Body)
}

// ParseConstituents extracts (ticker, name, sector) rows from the
// constituents wikitable. Rows with an empty symbol cell are skipped.
func ParseConstituents(r io.Reader) ([]models.CompanyProfile, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse constituents page: %w", err)
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("no constituents table found")
	}

	var profiles []models.CompanyProfile
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return // header or malformed row
		}
		ticker := NormalizeTicker(cells.Eq(0).Text())
		if ticker == "" {
			return
		}
		profiles = append(profiles, models.CompanyProfile{
			Ticker: ticker,
			Name:   strings.TrimSpace(cells.Eq(1).Text()),
			Sector: strings.TrimSpace(cells.Eq(2).Text()),
		})
	})

	if len(profiles) == 0 {
		return nil, fmt.Errorf("constituents table had no usable rows")
	}
	return profiles, nil
}

// NormalizeTicker converts share-class dots to the dash form most data
// vendors use (BRK.B -> BRK-B) and uppercases.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ticker), ".", "-"))
}
