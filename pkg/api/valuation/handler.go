// Package valuation exposes the valuation engine over HTTP: one
// endpoint to run a fresh valuation from stored fundamentals, one to
// fetch the latest persisted report.
package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/core/engine"
	"quant_valuation/pkg/core/features"
	"quant_valuation/pkg/core/ingest"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/report"
	"quant_valuation/pkg/core/simulation"
	"quant_valuation/pkg/core/store"
	"quant_valuation/pkg/core/summary"
	"quant_valuation/pkg/models"
)

// FundamentalsStore supplies stored company histories.
type FundamentalsStore interface {
	History(ctx context.Context, ticker string) ([]models.FinancialSnapshot, models.CompanyProfile, error)
	All(ctx context.Context) (map[string][]models.FinancialSnapshot, map[string]models.CompanyProfile, error)
}

// ReportStore persists and retrieves finished reports.
type ReportStore interface {
	Save(ctx context.Context, rep *aggregate.ValuationReport) error
	Latest(ctx context.Context, ticker string) (*aggregate.ValuationReport, error)
}

// Valuator runs one valuation job.
type Valuator interface {
	Valuate(ctx context.Context, req engine.Request) (*aggregate.ValuationReport, error)
}

// Narrator produces optional LLM commentary for a finished report.
type Narrator interface {
	Generate(ctx context.Context, rep *aggregate.ValuationReport) (*summary.Commentary, error)
}

// Handler holds dependencies for valuation endpoints.
type Handler struct {
	Engine       Valuator
	Fundamentals FundamentalsStore
	Reports      ReportStore
	Narrator     Narrator // nil disables commentary
	Logger       log.Logger
}

// NewHandler creates a new valuation handler.
func NewHandler(eng Valuator, fundamentals FundamentalsStore, reports ReportStore, narrator Narrator) *Handler {
	return &Handler{
		Engine:       eng,
		Fundamentals: fundamentals,
		Reports:      reports,
		Narrator:     narrator,
		Logger:       log.DefaultLogger,
	}
}

type RunRequest struct {
	Ticker      string   `json:"ticker"`
	Seed        *int64   `json:"seed,omitempty"`
	MarketPrice *float64 `json:"market_price,omitempty"`
}

type ReportResponse struct {
	Report     *aggregate.ValuationReport `json:"report"`
	Markdown   string                     `json:"markdown"`
	Commentary *summary.Commentary        `json:"commentary,omitempty"`
}

// HandleRun runs a full valuation for one ticker from stored
// fundamentals, persists the report, and returns it with a markdown
// rendering and optional commentary.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ticker := ingest.NormalizeTicker(req.Ticker)
	if ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	start := time.Now()

	history, profile, err := h.Fundamentals.History(ctx, ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, fmt.Sprintf("no fundamentals stored for %s", ticker), http.StatusNotFound)
			return
		}
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("loading fundamentals failed")
		http.Error(w, "failed to load fundamentals", http.StatusInternalServerError)
		return
	}

	universe, profiles, err := h.Fundamentals.All(ctx)
	if err != nil {
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("loading universe failed")
		http.Error(w, "failed to load universe", http.StatusInternalServerError)
		return
	}
	delete(universe, ticker)

	marketPrice := req.MarketPrice
	if marketPrice == nil && profile.CurrentPrice > 0 {
		marketPrice = &profile.CurrentPrice
	}

	rep, err := h.Engine.Valuate(ctx, engine.Request{
		Ticker:      ticker,
		History:     history,
		Profile:     profile,
		Universe:    universe,
		Profiles:    profiles,
		MarketPrice: marketPrice,
		Seed:        req.Seed,
	})
	if err != nil {
		h.respondEngineError(w, ticker, err)
		return
	}

	if err := h.Reports.Save(ctx, rep); err != nil {
		h.Logger.Warn().Err(err).Str("ticker", ticker).Msg("failed to persist report")
	}

	h.Logger.Info().
		Str("ticker", ticker).
		Float64("point_estimate", rep.PointEstimate).
		Int64("took_ms", time.Since(start).Milliseconds()).
		Msg("valuation run complete")

	h.respondWithReport(w, ctx, rep, true)
}

// HandleReport returns the latest persisted report for ?ticker=X.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticker := ingest.NormalizeTicker(r.URL.Query().Get("ticker"))
	if ticker == "" {
		http.Error(w, "ticker query parameter is required", http.StatusBadRequest)
		return
	}

	rep, err := h.Reports.Latest(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, fmt.Sprintf("no report stored for %s", ticker), http.StatusNotFound)
			return
		}
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("loading report failed")
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}

	h.respondWithReport(w, r.Context(), rep, false)
}

// respondEngineError maps engine failures to status codes: bad target
// data is the client's problem, a model misconfiguration is ours.
func (h *Handler) respondEngineError(w http.ResponseWriter, ticker string, err error) {
	var insufficient *features.InsufficientDataError
	var unstable *simulation.SimulationUnstableError
	var schema *predictor.FeatureSchemaError

	switch {
	case errors.As(err, &insufficient):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &unstable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &schema):
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("model schema mismatch")
		http.Error(w, "valuation model misconfigured", http.StatusInternalServerError)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("valuation failed")
		http.Error(w, "valuation failed", http.StatusInternalServerError)
	}
}

func (h *Handler) respondWithReport(w http.ResponseWriter, ctx context.Context, rep *aggregate.ValuationReport, withCommentary bool) {
	md, err := report.RenderMarkdown(rep)
	if err != nil {
		h.Logger.Error().Err(err).Str("ticker", rep.Ticker).Msg("markdown rendering failed")
		http.Error(w, "report rendering failed", http.StatusInternalServerError)
		return
	}

	resp := ReportResponse{Report: rep, Markdown: md}
	if withCommentary && h.Narrator != nil {
		c, err := h.Narrator.Generate(ctx, rep)
		if err != nil {
			h.Logger.Warn().Err(err).Str("ticker", rep.Ticker).Msg("commentary generation failed")
		} else {
			resp.Commentary = c
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
