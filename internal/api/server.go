// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/defi-dashboard/internal/config"
	"github.com/defi-dashboard/internal/logging"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/service"
	"github.com/defi-dashboard/internal/simulator"
)

// Service interfaces for dependency injection and testing

// LedgerServiceInterface defines the interface for ledger operations
type LedgerServiceInterface interface {
	GetPortfolio(ctx context.Context, walletAddress string) (*service.PortfolioView, error)
	ListTransactions(ctx context.Context, walletAddress string) ([]*service.TransactionRecord, error)
	ListTokens(ctx context.Context) ([]*models.Token, error)
	ListPrices(ctx context.Context) ([]*service.PriceView, error)
	GasPrice() *service.GasPriceView
}

// SimulatorInterface defines the interface for trade simulation
type SimulatorInterface interface {
	SubmitSwap(ctx context.Context, in *simulator.SwapInput) (*simulator.SwapResult, error)
	SubmitTrade(ctx context.Context, in *simulator.TradeInput) (*simulator.TradeResult, error)
}

// MarketFeedInterface defines the interface for upstream market passthroughs
type MarketFeedInterface interface {
	Trending(ctx context.Context) (json.RawMessage, error)
	GlobalMarket(ctx context.Context) (json.RawMessage, error)
	CoinDetail(ctx context.Context, coinID string) (json.RawMessage, error)
	MarketChart(ctx context.Context, coinID string, days int) (json.RawMessage, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	ledger     LedgerServiceInterface
	trades     SimulatorInterface
	market     MarketFeedInterface
	config     *config.ServerConfig
	rateLimit  *config.RateLimitConfig
	logger     *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(
	cfg *config.ServerConfig,
	rateLimit *config.RateLimitConfig,
	ledger LedgerServiceInterface,
	trades SimulatorInterface,
	market MarketFeedInterface,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		ledger:    ledger,
		trades:    trades,
		market:    market,
		config:    cfg,
		rateLimit: rateLimit,
		logger:    logging.WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.rateLimit.RequestsPerSecond, s.rateLimit.Burst)

	// Middleware order matters: limit before compressing
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Catalog and pricing endpoints
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/prices", s.handleListPrices).Methods("GET")
	api.HandleFunc("/gas-price", s.handleGasPrice).Methods("GET")

	// Wallet endpoints
	api.HandleFunc("/portfolio/{walletAddress}", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/transactions/{walletAddress}", s.handleListTransactions).Methods("GET")

	// Simulated trading endpoints
	api.HandleFunc("/swap", s.handleSwap).Methods("POST")
	api.HandleFunc("/trade", s.handleTrade).Methods("POST")

	// Upstream market passthroughs
	api.HandleFunc("/trending", s.handleTrending).Methods("GET")
	api.HandleFunc("/market/global", s.handleGlobalMarket).Methods("GET")
	api.HandleFunc("/coins/{id}", s.handleCoinDetail).Methods("GET")
	api.HandleFunc("/coins/{id}/chart", s.handleCoinChart).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "defi-dashboard",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
