// Package main provides the API server entry point for the DeFi dashboard backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/defi-dashboard/internal/api"
	"github.com/defi-dashboard/internal/config"
	"github.com/defi-dashboard/internal/feed"
	"github.com/defi-dashboard/internal/logging"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/pricing"
	"github.com/defi-dashboard/internal/service"
	"github.com/defi-dashboard/internal/simulator"
	"github.com/defi-dashboard/internal/storage"
	"github.com/defi-dashboard/internal/storage/memory"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Build the in-memory ledger and seed the token catalog
	ledger := &storage.Ledger{
		Users:        memory.NewUserStore(),
		Tokens:       memory.NewTokenStore(),
		Balances:     memory.NewBalanceStore(),
		Transactions: memory.NewTransactionStore(),
		Prices:       memory.NewPriceStore(),
	}
	if err := ledger.SeedTokens(context.Background(), models.DefaultTokens()); err != nil {
		logger.WithError(err).Fatal("Failed to seed token catalog")
	}
	logger.Info("Ledger initialized")

	// Quote cache: Redis when configured, in-process otherwise
	var quoteCache storage.QuoteCache
	if cfg.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		quoteCache = storage.NewRedisQuoteCache(redis)
		logger.WithField("host", cfg.Redis.Host).Info("Redis quote cache connected")
	} else {
		quoteCache = storage.NewMemoryQuoteCache()
		logger.Info("Using in-process quote cache")
	}

	// Upstream feed client (throttled, breaker-guarded)
	feedClient := feed.NewClient(&cfg.Feed)

	// Pricing service with serve-stale and queued replay on upstream 429s
	pricingService := pricing.NewService(feedClient, quoteCache, ledger.Prices, pricing.Options{
		FreshnessWindow: cfg.Pricing.FreshnessWindow,
		DefaultBackoff:  cfg.Pricing.DefaultBackoff,
		DrainBatchSize:  cfg.Pricing.DrainBatchSize,
		DrainSpacing:    cfg.Pricing.DrainSpacing,
	})
	defer pricingService.Close()

	// Ledger service (users, portfolio, prices, history)
	ledgerService := service.NewLedgerService(ledger, pricingService)

	// Trade simulator with asynchronous settlement
	sim := simulator.New(ledger, ledgerService, ledgerService, simulator.Options{
		SettlementDelay: cfg.Simulator.SettlementDelay,
		FailureRate:     cfg.Simulator.FailureRate,
	})
	defer sim.Shutdown()

	logger.Info("Services initialized")

	server := api.NewServer(&cfg.Server, &cfg.RateLimit, ledgerService, sim, feedClient)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
