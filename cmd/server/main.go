package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kainotomo/invoice-bridge/api"
	"github.com/kainotomo/invoice-bridge/internal/auth"
	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/db"
	"github.com/kainotomo/invoice-bridge/internal/erpnext"
	"github.com/kainotomo/invoice-bridge/internal/extraction"
	"github.com/kainotomo/invoice-bridge/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth")
	}
	log.Info().Msg("JWT authentication initialized")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Warn().Err(err).Msg("database not available, runs will not be persisted")
	} else {
		defer db.Close()
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Warn().Err(err).Msg("MinIO storage not available, source files will not be archived")
	} else {
		log.Info().Msg("MinIO storage initialized")
	}

	// Remote extraction provider
	var provider *extraction.Client
	if cfg.Provider.BaseURL != "" {
		provider = extraction.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.APISecret)
	}

	// Local rule templates for manual mode
	var local *extraction.LocalExtractor
	if cfg.TemplatesDir != "" {
		local, err = extraction.LoadTemplates(cfg.TemplatesDir)
		if err != nil {
			log.Warn().Err(err).Msg("local extraction templates not available")
			local = nil
		}
	}

	if cfg.ERPNext.BaseURL == "" {
		log.Fatal().Msg("erpnext.base_url must be configured")
	}
	store := erpnext.NewClient(cfg.ERPNext.BaseURL, cfg.ERPNext.APIKey, cfg.ERPNext.APISecret)

	// Create API handler
	handler := api.NewHandler(cfg, provider, local, store)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info().
		Str("addr", addr).
		Str("mode", cfg.Transform.Mode).
		Bool("database", db.Pool != nil).
		Bool("storage", storage.Client != nil).
		Msg("starting invoice bridge service")

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
