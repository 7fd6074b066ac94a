package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/defi-dashboard/internal/config"
	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/feed"
	"github.com/defi-dashboard/internal/service"
	"github.com/defi-dashboard/internal/simulator"
)

const testWallet = "0x1234567890123456789012345678901234567890"

func doRequest(server *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not JSON: %v (%s)", err, w.Body.String())
	}
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	server := createTestServer()

	w := doRequest(server, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestListTokens(t *testing.T) {
	server := createTestServer()

	w := doRequest(server, "GET", "/api/tokens", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Tokens []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(resp.Tokens) == 0 {
		t.Error("Expected a non-empty token catalog")
	}
}

func TestGetPortfolio(t *testing.T) {
	server := createTestServer(func(ledger *mockLedgerService, _ *mockSimulator, _ *mockMarketFeed) {
		ledger.portfolioFn = func(_ context.Context, walletAddress string) (*service.PortfolioView, error) {
			return &service.PortfolioView{
				WalletAddress: walletAddress,
				TotalValue:    "6000",
				Assets: []service.PortfolioAsset{
					{ID: "ethereum", Token: "ETH", Balance: "2", Value: "6000", Price: "3000"},
				},
			}, nil
		}
	})

	w := doRequest(server, "GET", "/api/portfolio/"+testWallet, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var view service.PortfolioView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if view.TotalValue != "6000" || len(view.Assets) != 1 {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestGetPortfolio_InvalidWallet(t *testing.T) {
	server := createTestServer(func(ledger *mockLedgerService, _ *mockSimulator, _ *mockMarketFeed) {
		ledger.portfolioFn = func(_ context.Context, walletAddress string) (*service.PortfolioView, error) {
			return nil, apperrors.NewInvalidInputError("invalid wallet address")
		}
	})

	w := doRequest(server, "GET", "/api/portfolio/not-a-wallet", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != apperrors.CodeInvalidInput {
		t.Errorf("error code = %q", code)
	}
}

func TestListTransactions_UnknownWallet(t *testing.T) {
	server := createTestServer(func(ledger *mockLedgerService, _ *mockSimulator, _ *mockMarketFeed) {
		ledger.transactionsFn = func(_ context.Context, walletAddress string) ([]*service.TransactionRecord, error) {
			return nil, apperrors.NewUserNotFoundError(walletAddress)
		}
	})

	w := doRequest(server, "GET", "/api/transactions/"+testWallet, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != apperrors.CodeUserNotFound {
		t.Errorf("error code = %q", code)
	}
}

func TestSwap(t *testing.T) {
	var captured *simulator.SwapInput
	server := createTestServer(func(_ *mockLedgerService, trades *mockSimulator, _ *mockMarketFeed) {
		trades.swapFn = func(_ context.Context, in *simulator.SwapInput) (*simulator.SwapResult, error) {
			captured = in
			return &simulator.SwapResult{
				TransactionID: 7,
				Status:        "pending",
				FromToken:     "ETH",
				ToToken:       "USDT",
				FromAmount:    "1",
				ToAmount:      "3000",
				Rate:          "3000",
				NetworkFee:    "0.002",
			}, nil
		}
	})

	body, _ := json.Marshal(map[string]string{
		"fromTokenId":   "ethereum",
		"toTokenId":     "tether",
		"fromAmount":    "1",
		"walletAddress": testWallet,
	})
	w := doRequest(server, "POST", "/api/swap", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if captured == nil || captured.FromTokenID != "ethereum" || captured.WalletAddress != testWallet {
		t.Errorf("simulator input = %+v", captured)
	}

	var result simulator.SwapResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if result.TransactionID != 7 || result.Status != "pending" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSwap_InvalidJSON(t *testing.T) {
	server := createTestServer()

	w := doRequest(server, "POST", "/api/swap", []byte("invalid json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSwap_InsufficientBalance(t *testing.T) {
	server := createTestServer(func(_ *mockLedgerService, trades *mockSimulator, _ *mockMarketFeed) {
		trades.swapFn = func(_ context.Context, in *simulator.SwapInput) (*simulator.SwapResult, error) {
			return nil, apperrors.NewInsufficientBalanceError("ETH", "0.5", "1")
		}
	})

	body, _ := json.Marshal(map[string]string{
		"fromTokenId":   "ethereum",
		"toTokenId":     "tether",
		"fromAmount":    "1",
		"walletAddress": testWallet,
	})
	w := doRequest(server, "POST", "/api/swap", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != apperrors.CodeInsufficientBalance {
		t.Errorf("error code = %q", code)
	}
}

func TestTrade(t *testing.T) {
	server := createTestServer(func(_ *mockLedgerService, trades *mockSimulator, _ *mockMarketFeed) {
		trades.tradeFn = func(_ context.Context, in *simulator.TradeInput) (*simulator.TradeResult, error) {
			if string(in.Kind) != "buy" {
				t.Errorf("Kind = %q, want buy", in.Kind)
			}
			return &simulator.TradeResult{TransactionID: 9, Status: "pending", Type: "buy", Total: "200"}, nil
		}
	})

	body, _ := json.Marshal(map[string]string{
		"tokenId":       "ethereum",
		"baseTokenId":   "tether",
		"amount":        "2",
		"price":         "100",
		"type":          "buy",
		"walletAddress": testWallet,
	})
	w := doRequest(server, "POST", "/api/trade", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGasPrice(t *testing.T) {
	server := createTestServer()

	w := doRequest(server, "GET", "/api/gas-price", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var view service.GasPriceView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if view.Unit != "gwei" {
		t.Errorf("Unit = %q, want gwei", view.Unit)
	}
}

func TestTrending_Passthrough(t *testing.T) {
	server := createTestServer(func(_ *mockLedgerService, _ *mockSimulator, market *mockMarketFeed) {
		market.trendingFn = func(_ context.Context) (json.RawMessage, error) {
			return json.RawMessage(`{"coins":[{"id":"bitcoin"}]}`), nil
		}
	})

	w := doRequest(server, "GET", "/api/trending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != `{"coins":[{"id":"bitcoin"}]}` {
		t.Errorf("payload was not passed through unchanged: %s", w.Body.String())
	}
}

func TestTrending_UpstreamRateLimited(t *testing.T) {
	server := createTestServer(func(_ *mockLedgerService, _ *mockSimulator, market *mockMarketFeed) {
		market.trendingFn = func(_ context.Context) (json.RawMessage, error) {
			return nil, &feed.RateLimitError{}
		}
	})

	w := doRequest(server, "GET", "/api/trending", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != apperrors.CodeUpstreamRateLimited {
		t.Errorf("error code = %q", code)
	}
}

func TestCoinChart_InvalidDays(t *testing.T) {
	server := createTestServer()

	for _, query := range []string{"?days=0", "?days=400", "?days=abc"} {
		w := doRequest(server, "GET", "/api/coins/bitcoin/chart"+query, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("days query %q: expected status 400, got %d", query, w.Code)
		}
	}
}

func TestCoinChart_DefaultDays(t *testing.T) {
	server := createTestServer(func(_ *mockLedgerService, _ *mockSimulator, market *mockMarketFeed) {
		market.chartFn = func(_ context.Context, coinID string, days int) (json.RawMessage, error) {
			if days != 7 {
				t.Errorf("days = %d, want default 7", days)
			}
			return json.RawMessage(`{"prices":[]}`), nil
		}
	})

	w := doRequest(server, "GET", "/api/coins/bitcoin/chart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestUpstreamError_BadGateway(t *testing.T) {
	server := createTestServer(func(_ *mockLedgerService, _ *mockSimulator, market *mockMarketFeed) {
		market.globalFn = func(_ context.Context) (json.RawMessage, error) {
			return nil, errors.New("connection refused")
		}
	})

	w := doRequest(server, "GET", "/api/market/global", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", w.Code)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	server := NewServer(
		&config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		&config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
		&mockLedgerService{},
		&mockSimulator{},
		&mockMarketFeed{},
	)

	first := doRequest(server, "GET", "/health", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected status 200, got %d", first.Code)
	}

	second := doRequest(server, "GET", "/health", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected status 429, got %d", second.Code)
	}
}
