package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	apiconfig "quant_valuation/pkg/api/config"
	"quant_valuation/pkg/api/valuation"
	"quant_valuation/pkg/core/engine"
	"quant_valuation/pkg/core/predictor"
	"quant_valuation/pkg/core/store"
	"quant_valuation/pkg/core/summary"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Load environment variables
	godotenv.Load()

	logger := log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true},
	}

	cfgPath := envOr("CONFIG_PATH", "config/engine.yaml")
	cfg, err := engine.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load engine config")
	}

	// A missing model file disables the model source; the engine
	// degrades to simulation + peers.
	var model predictor.Model
	modelVersion := "none"
	modelPath := envOr("MODEL_PATH", "config/model.json")
	if m, err := predictor.LoadModel(modelPath); err != nil {
		logger.Warn().Err(err).Str("path", modelPath).Msg("model unavailable, running without it")
	} else {
		model = m
		modelVersion = m.Version()
	}

	profilesDir := envOr("PROFILES_DIR", "config/profiles")
	profiles, err := engine.LoadProfiles(profilesDir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", profilesDir).Msg("no assumption profiles loaded")
		profiles = map[string]*engine.Profile{}
	}

	eng, err := engine.New(*cfg, model, engine.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx, store.GetPool()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	fundamentals := store.NewFundamentalsRepo()
	reports := store.NewReportRepo()

	// Commentary is optional; without an API key the run endpoint
	// returns reports without narrative.
	var narrator valuation.Narrator
	switch provider := envOr("SUMMARY_PROVIDER", "gemini"); provider {
	case "gemini":
		if os.Getenv("GEMINI_API_KEY") != "" {
			narrator = summary.NewGenerator(&summary.GeminiProvider{})
		} else {
			logger.Warn().Msg("GEMINI_API_KEY not set, commentary disabled")
		}
	case "deepseek":
		if os.Getenv("DEEPSEEK_API_KEY") != "" {
			narrator = summary.NewGenerator(&summary.DeepSeekProvider{})
		} else {
			logger.Warn().Msg("DEEPSEEK_API_KEY not set, commentary disabled")
		}
	default:
		logger.Warn().Str("provider", provider).Msg("unknown summary provider, commentary disabled")
	}

	valuationHandler := valuation.NewHandler(eng, fundamentals, reports, narrator)
	valuationHandler.Logger = logger
	http.HandleFunc("/api/valuation/run", valuationHandler.HandleRun)
	http.HandleFunc("/api/valuation/report", valuationHandler.HandleReport)

	configHandler := apiconfig.NewHandler(eng, *cfg, profiles, modelVersion)
	configHandler.Logger = logger
	http.HandleFunc("/api/config", configHandler.HandleConfig)
	http.HandleFunc("/api/config/profile", configHandler.HandleSwitch)

	addr := ":" + envOr("PORT", "8080")
	logger.Info().
		Str("addr", addr).
		Str("model", modelVersion).
		Int("profiles", len(profiles)).
		Msg("API server starting")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
