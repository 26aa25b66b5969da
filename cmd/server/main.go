package main

import (
	"context"
	"errors"
	"time"

	"responder/internal/audit"
	"responder/internal/auth"
	"responder/internal/commerce"
	"responder/internal/config"
	"responder/internal/database"
	"responder/internal/email"
	"responder/internal/handlers"
	"responder/internal/llm"
	"responder/internal/logbuffer"
	"responder/internal/server"
	"responder/internal/triage"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// openStores returns the PostgreSQL stores, or in-memory ones when no
// database is reachable
func openStores(cfg *config.Config, logger zerolog.Logger) (*sqlx.DB, triage.Store, audit.Store) {
	db, err := database.New(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Database connection failed")
		logger.Info().Msg("Starting server with in-memory storage; data is lost on restart")
		return nil, triage.NewMemoryStore(), audit.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.CreateTables(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create tables")
	}

	return db, database.NewTriageStore(db, logger), audit.NewPostgresStore(db)
}

func main() {
	cfg := config.Load()

	logs := logbuffer.New(cfg.LogBufferSize)
	logger := cfg.SetupLogger(logs)

	db, store, auditStore := openStores(cfg, logger)

	llmClient, err := llm.New(cfg, logger)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			logger.Fatal().Err(err).Msg("Failed to create LLM client")
		}
		logger.Warn().Msg("No LLM provider configured; classification and drafting are disabled")
	}

	transport, err := email.NewTransport(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Mail transport not configured; bulk replies are disabled")
	}

	authManager, err := auth.NewManager(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create auth manager")
	}
	if cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET not set; sessions will not survive a restart")
	}

	timeout := cfg.LLMTimeoutDuration()
	orderTTL := cfg.OrderCacheTTLDuration()

	services := &server.Services{
		Store: store,
		Pipeline: &handlers.Pipeline{
			Persister:    triage.NewPersister(store, cfg.InsertBatchSize, logger),
			Classifier:   triage.NewClassifier(store, llmClient, cfg.ClassifyBatchSize, timeout, logger),
			Grouper:      triage.NewGrouper(store, logger),
			AutoClassify: cfg.AutoClassify,
		},
		Drafter:     triage.NewDrafter(store, llmClient, cfg.DraftBatchSize, timeout, logger),
		Responder:   triage.NewResponder(store, transport, logger),
		Audit:       audit.NewService(auditStore, logger),
		Auth:        authManager,
		Shopify:     commerce.NewShopifyClient(cfg.ShopifyStoreURL, cfg.ShopifyAccessToken, cfg.ShopifyAPIVersion, orderTTL, logger),
		ShipStation: commerce.NewShipStationClient(cfg.ShipStationBaseURL, cfg.ShipStationAPIKey, cfg.ShipStationAPISecret, orderTTL, logger),
		Logs:        logs,
	}

	srv := server.New(cfg, db, services, logger)
	srv.Initialize()

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
