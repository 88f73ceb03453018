package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inboxpilot/internal/assembler"
	"inboxpilot/internal/auth"
	"inboxpilot/internal/cache"
	"inboxpilot/internal/claims"
	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/llm"
	"inboxpilot/internal/notify"
	"inboxpilot/internal/orchestrator"
	"inboxpilot/internal/server"
	"inboxpilot/internal/services"
	"inboxpilot/internal/syncer"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	logger.Info().Msg("Database connection established successfully")

	// Redis is optional; without it, claims degrade to process-local dedup
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid Redis URL")
		}
		redisClient = redis.NewClient(opts)
		logger.Info().Msg("Redis claim store configured")
	} else {
		logger.Warn().Msg("REDIS_URL not set, claim dedup is process-local only")
	}

	provider, err := llm.NewProvider(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("LLM provider configuration invalid")
	}
	logger.Info().Str("provider", provider.Name()).Msg("LLM provider ready")

	threadStore := database.NewThreadStore(db)
	contextStore := database.NewContextStore(db)
	resultStore := database.NewResultStore(db)

	blockCache := cache.New(time.Duration(cfg.ContextCacheTTLMins) * time.Minute)
	asm := assembler.New(threadStore, contextStore, blockCache, cfg, logger)
	pipeline := orchestrator.New(asm, provider, resultStore, cfg, logger)

	guard := claims.New(redisClient, time.Duration(cfg.ClaimTTLSeconds)*time.Second, logger)

	var notifier services.Notifier
	mailer := notify.NewAlertMailer(cfg.SendGridAPIKey, cfg.AlertEmail, cfg.AlertFromEmail)
	if mailer.Configured() {
		notifier = mailer
	} else {
		logger.Warn().Msg("Escalation alert email not configured, alerts disabled")
	}

	runner := services.NewRunner(resultStore, pipeline, guard, notifier, logger)
	syncClient := syncer.New(cfg.SyncServiceURL, logger)

	// Create and initialize server
	srv := server.New(cfg, server.Deps{
		DB:       db,
		Auth:     auth.NewManager(cfg.APITokens),
		Threads:  threadStore,
		Results:  resultStore,
		Sync:     syncClient,
		Runner:   runner,
		Rewriter: pipeline,
	}, logger)
	srv.Initialize()

	// Start server
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Block until SIGINT/SIGTERM, then drain in-flight requests
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Database close failed")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Redis close failed")
		}
	}
	logger.Info().Msg("Server stopped")
}
