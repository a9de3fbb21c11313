// Package config exposes the engine's runtime configuration: what the
// engine is currently running with, and a switch for the active
// assumption profile.
package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/phuslu/log"

	"quant_valuation/pkg/core/aggregate"
	"quant_valuation/pkg/core/engine"
)

// Response summarizes the live engine configuration.
type Response struct {
	ModelVersion          string            `json:"model_version"`
	ActiveProfile         string            `json:"active_profile"`
	AvailableProfiles     []string          `json:"available_profiles"`
	TrialCount            int               `json:"trial_count"`
	HorizonYears          int               `json:"horizon_years"`
	Weights               aggregate.Weights `json:"weights"`
	DisagreementTolerance float64           `json:"disagreement_tolerance"`
}

type SwitchRequest struct {
	Profile string `json:"profile"`
}

// Handler holds dependencies for config endpoints.
type Handler struct {
	Engine       *engine.Engine
	Cfg          engine.Config
	Profiles     map[string]*engine.Profile
	ModelVersion string
	Logger       log.Logger
}

// NewHandler creates a new config handler. Profiles is the set loaded
// at startup; switching is restricted to that set.
func NewHandler(eng *engine.Engine, cfg engine.Config, profiles map[string]*engine.Profile, modelVersion string) *Handler {
	return &Handler{
		Engine:       eng,
		Cfg:          cfg,
		Profiles:     profiles,
		ModelVersion: modelVersion,
		Logger:       log.DefaultLogger,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	names := make([]string, 0, len(h.Profiles))
	for name := range h.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	active := ""
	if p := h.Engine.ActiveProfile(); p != nil {
		active = p.Name
	}

	resp := Response{
		ModelVersion:          h.ModelVersion,
		ActiveProfile:         active,
		AvailableProfiles:     names,
		TrialCount:            h.Cfg.Simulation.TrialCount,
		HorizonYears:          h.Cfg.Simulation.HorizonYears,
		Weights:               h.Cfg.Aggregation.Weights,
		DisagreementTolerance: h.Cfg.Aggregation.DisagreementTolerance,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleSwitch activates a loaded profile by name. An empty name
// returns the engine to pure derivation.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
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

	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Profile == "" {
		h.Engine.SetProfile(nil)
		h.Logger.Info().Msg("assumption profile cleared")
		fmt.Fprint(w, "Success: profile cleared")
		return
	}

	p, ok := h.Profiles[req.Profile]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown profile: %s", req.Profile), http.StatusBadRequest)
		return
	}

	h.Engine.SetProfile(p)
	h.Logger.Info().Str("profile", req.Profile).Msg("assumption profile switched")
	fmt.Fprintf(w, "Success: switched to %s", req.Profile)
}
