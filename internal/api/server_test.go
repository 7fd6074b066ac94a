package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/defi-dashboard/internal/config"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/service"
	"github.com/defi-dashboard/internal/simulator"
)

// Hand-rolled mocks with overridable behavior per test.

type mockLedgerService struct {
	portfolioFn    func(ctx context.Context, walletAddress string) (*service.PortfolioView, error)
	transactionsFn func(ctx context.Context, walletAddress string) ([]*service.TransactionRecord, error)
	tokensFn       func(ctx context.Context) ([]*models.Token, error)
	pricesFn       func(ctx context.Context) ([]*service.PriceView, error)
	gasFn          func() *service.GasPriceView
}

func (m *mockLedgerService) GetPortfolio(ctx context.Context, walletAddress string) (*service.PortfolioView, error) {
	if m.portfolioFn != nil {
		return m.portfolioFn(ctx, walletAddress)
	}
	return &service.PortfolioView{WalletAddress: walletAddress, TotalValue: "0", Assets: []service.PortfolioAsset{}}, nil
}

func (m *mockLedgerService) ListTransactions(ctx context.Context, walletAddress string) ([]*service.TransactionRecord, error) {
	if m.transactionsFn != nil {
		return m.transactionsFn(ctx, walletAddress)
	}
	return []*service.TransactionRecord{}, nil
}

func (m *mockLedgerService) ListTokens(ctx context.Context) ([]*models.Token, error) {
	if m.tokensFn != nil {
		return m.tokensFn(ctx)
	}
	return models.DefaultTokens(), nil
}

func (m *mockLedgerService) ListPrices(ctx context.Context) ([]*service.PriceView, error) {
	if m.pricesFn != nil {
		return m.pricesFn(ctx)
	}
	return []*service.PriceView{}, nil
}

func (m *mockLedgerService) GasPrice() *service.GasPriceView {
	if m.gasFn != nil {
		return m.gasFn()
	}
	return &service.GasPriceView{GasPrice: "42", Unit: "gwei", Timestamp: time.Now().UTC()}
}

type mockSimulator struct {
	swapFn  func(ctx context.Context, in *simulator.SwapInput) (*simulator.SwapResult, error)
	tradeFn func(ctx context.Context, in *simulator.TradeInput) (*simulator.TradeResult, error)
}

func (m *mockSimulator) SubmitSwap(ctx context.Context, in *simulator.SwapInput) (*simulator.SwapResult, error) {
	if m.swapFn != nil {
		return m.swapFn(ctx, in)
	}
	return &simulator.SwapResult{TransactionID: 1, Status: "pending"}, nil
}

func (m *mockSimulator) SubmitTrade(ctx context.Context, in *simulator.TradeInput) (*simulator.TradeResult, error) {
	if m.tradeFn != nil {
		return m.tradeFn(ctx, in)
	}
	return &simulator.TradeResult{TransactionID: 1, Status: "pending"}, nil
}

type mockMarketFeed struct {
	trendingFn func(ctx context.Context) (json.RawMessage, error)
	globalFn   func(ctx context.Context) (json.RawMessage, error)
	detailFn   func(ctx context.Context, coinID string) (json.RawMessage, error)
	chartFn    func(ctx context.Context, coinID string, days int) (json.RawMessage, error)
}

func (m *mockMarketFeed) Trending(ctx context.Context) (json.RawMessage, error) {
	if m.trendingFn != nil {
		return m.trendingFn(ctx)
	}
	return json.RawMessage(`{"coins":[]}`), nil
}

func (m *mockMarketFeed) GlobalMarket(ctx context.Context) (json.RawMessage, error) {
	if m.globalFn != nil {
		return m.globalFn(ctx)
	}
	return json.RawMessage(`{"data":{}}`), nil
}

func (m *mockMarketFeed) CoinDetail(ctx context.Context, coinID string) (json.RawMessage, error) {
	if m.detailFn != nil {
		return m.detailFn(ctx, coinID)
	}
	return json.RawMessage(`{"id":"` + coinID + `"}`), nil
}

func (m *mockMarketFeed) MarketChart(ctx context.Context, coinID string, days int) (json.RawMessage, error) {
	if m.chartFn != nil {
		return m.chartFn(ctx, coinID, days)
	}
	return json.RawMessage(`{"prices":[]}`), nil
}

type testServerOption func(*mockLedgerService, *mockSimulator, *mockMarketFeed)

func createTestServer(opts ...testServerOption) *Server {
	ledger := &mockLedgerService{}
	trades := &mockSimulator{}
	market := &mockMarketFeed{}
	for _, opt := range opts {
		opt(ledger, trades, market)
	}

	return NewServer(
		&config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		&config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		ledger,
		trades,
		market,
	)
}
