package simulator

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
	"github.com/defi-dashboard/internal/storage/memory"
	"github.com/defi-dashboard/internal/types"
)

const testWallet = "0x1234567890123456789012345678901234567890"

type fixedUsers struct {
	user *models.User
}

func (f *fixedUsers) GetOrCreateUserByWallet(_ context.Context, walletAddress string) (*models.User, error) {
	return f.user, nil
}

type tablePrices struct {
	prices map[string]string // token id -> price
}

func (p *tablePrices) ResolvePrice(_ context.Context, token *models.Token) (decimal.Decimal, error) {
	raw, ok := p.prices[token.ID]
	if !ok {
		return decimal.Zero, apperrors.NewPriceUnavailableError(token.Symbol)
	}
	return decimal.RequireFromString(raw), nil
}

type harness struct {
	sim    *Simulator
	ledger *storage.Ledger
	user   *models.User
	prices *tablePrices
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	ledger := &storage.Ledger{
		Users:        memory.NewUserStore(),
		Tokens:       memory.NewTokenStore(),
		Balances:     memory.NewBalanceStore(),
		Transactions: memory.NewTransactionStore(),
		Prices:       memory.NewPriceStore(),
	}

	ctx := context.Background()
	if err := ledger.SeedTokens(ctx, models.DefaultTokens()); err != nil {
		t.Fatalf("token seed failed: %v", err)
	}

	wallet := testWallet
	user := &models.User{ID: "u-1", Username: "user_123456", WalletAddress: &wallet}
	if err := ledger.Users.Create(ctx, user); err != nil {
		t.Fatalf("user create failed: %v", err)
	}

	prices := &tablePrices{prices: map[string]string{
		"ethereum": "3000",
		"tether":   "1",
		"bitcoin":  "60000",
	}}

	if opts.SettlementDelay == 0 {
		opts.SettlementDelay = 20 * time.Millisecond
	}

	sim := New(ledger, &fixedUsers{user: user}, prices, opts)
	t.Cleanup(sim.Shutdown)

	return &harness{sim: sim, ledger: ledger, user: user, prices: prices}
}

func (h *harness) setBalance(t *testing.T, tokenID, amount string) {
	t.Helper()
	if _, err := h.ledger.Balances.Set(context.Background(), h.user.ID, tokenID, decimal.RequireFromString(amount)); err != nil {
		t.Fatalf("balance seed failed: %v", err)
	}
}

func (h *harness) balance(t *testing.T, tokenID string) decimal.Decimal {
	t.Helper()
	balance, err := h.ledger.Balances.Get(context.Background(), h.user.ID, tokenID)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	return decimal.RequireFromString(balance.Amount)
}

func (h *harness) waitForStatus(t *testing.T, txID int64, want types.TransactionStatus) *models.Transaction {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tx, err := h.ledger.Transactions.GetByID(context.Background(), txID)
		if err != nil {
			t.Fatalf("transaction read failed: %v", err)
		}
		if tx.Status == want {
			return tx
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transaction %d never reached status %s", txID, want)
	return nil
}

func errCode(err error) string {
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Code
	}
	return ""
}

func TestSubmitSwap_RoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "ethereum", "2")

	result, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if err != nil {
		t.Fatalf("SubmitSwap() error = %v", err)
	}

	if result.Status != "pending" {
		t.Errorf("Status = %q, want pending", result.Status)
	}
	if result.ToAmount != "3000" {
		t.Errorf("ToAmount = %q, want 3000", result.ToAmount)
	}
	if result.Rate != "3000" {
		t.Errorf("Rate = %q, want 3000", result.Rate)
	}

	// The source balance is reserved at admission
	if got := h.balance(t, "ethereum"); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("ETH after admission = %s, want 1", got)
	}

	tx := h.waitForStatus(t, result.TransactionID, types.StatusCompleted)
	if tx.TxHash == nil {
		t.Fatal("settled transaction has no hash")
	}
	if ok, _ := regexp.MatchString(`^0x[0-9a-f]{64}$`, *tx.TxHash); !ok {
		t.Errorf("TxHash = %q, want 0x + 64 hex chars", *tx.TxHash)
	}

	if got := h.balance(t, "ethereum"); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("ETH after settlement = %s, want 1", got)
	}
	if got := h.balance(t, "tether"); !got.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("USDT after settlement = %s, want 3000", got)
	}
}

func TestSubmitSwap_InsufficientBalance(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "ethereum", "0.5")

	_, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodeInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}

	// No transaction row for a rejected request
	txs, _ := h.ledger.Transactions.ListByUser(context.Background(), h.user.ID)
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
	// Balance untouched
	if got := h.balance(t, "ethereum"); !got.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("ETH = %s, want 0.5", got)
	}
}

func TestSubmitSwap_UnknownToken(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "dogecoin",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodeTokenNotFound {
		t.Fatalf("expected TOKEN_NOT_FOUND, got %v", err)
	}
}

func TestSubmitSwap_MissingWallet(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID: "ethereum",
		ToTokenID:   "tether",
		FromAmount:  "1",
	})
	if errCode(err) != apperrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSubmitSwap_ZeroReferencePrice(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "ethereum", "2")

	// Dead quote on the destination side: the upstream reports delisted
	// coins with price 0, which must not reach the rate division.
	h.prices.prices["tether"] = "0"

	_, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodePriceUnavailable {
		t.Fatalf("expected PRICE_UNAVAILABLE, got %v", err)
	}

	// Rejection happens before the reservation
	if got := h.balance(t, "ethereum"); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("ETH = %s, want untouched 2", got)
	}
	txs, _ := h.ledger.Transactions.ListByUser(context.Background(), h.user.ID)
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}

	// Same guard on the source side
	h.prices.prices["tether"] = "1"
	h.prices.prices["ethereum"] = "0"
	_, err = h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodePriceUnavailable {
		t.Fatalf("expected PRICE_UNAVAILABLE for zero source price, got %v", err)
	}
}

func TestSubmitTrade_ZeroReferencePrice(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "tether", "1000")

	h.prices.prices["ethereum"] = "0"

	_, err := h.sim.SubmitTrade(context.Background(), &TradeInput{
		TokenID:       "ethereum",
		BaseTokenID:   "tether",
		Amount:        "2",
		Price:         "100",
		Kind:          types.KindBuy,
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodePriceUnavailable {
		t.Fatalf("expected PRICE_UNAVAILABLE, got %v", err)
	}
	if got := h.balance(t, "tether"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("USDT = %s, want untouched 1000", got)
	}
}

func TestSubmitSwap_NoPriceForSide(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "solana", "100")

	// solana has no reference price in the table
	_, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "solana",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodePriceUnavailable {
		t.Fatalf("expected PRICE_UNAVAILABLE, got %v", err)
	}
}

func TestSubmitSwap_ConcurrentAdmissionsCannotOversell(t *testing.T) {
	h := newHarness(t, Options{SettlementDelay: time.Hour})
	h.setBalance(t, "ethereum", "2")

	in := &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1.5",
		WalletAddress: testWallet,
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := h.sim.SubmitSwap(context.Background(), in)
			results <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			if errCode(err) != apperrors.CodeInsufficientBalance {
				t.Errorf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want exactly 1 of 2 admissions rejected", failures)
	}
}

func TestSubmitTrade_Buy(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "tether", "1000")

	result, err := h.sim.SubmitTrade(context.Background(), &TradeInput{
		TokenID:       "ethereum",
		BaseTokenID:   "tether",
		Amount:        "2",
		Price:         "100",
		Kind:          types.KindBuy,
		WalletAddress: testWallet,
	})
	if err != nil {
		t.Fatalf("SubmitTrade() error = %v", err)
	}

	if result.Total != "200" {
		t.Errorf("Total = %q, want 200", result.Total)
	}
	if result.Status != "pending" {
		t.Errorf("Status = %q, want pending", result.Status)
	}

	h.waitForStatus(t, result.TransactionID, types.StatusCompleted)

	if got := h.balance(t, "tether"); !got.Equal(decimal.NewFromInt(800)) {
		t.Errorf("USDT = %s, want 800", got)
	}
	if got := h.balance(t, "ethereum"); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("ETH = %s, want 2", got)
	}
}

func TestSubmitTrade_Sell(t *testing.T) {
	h := newHarness(t, Options{})
	h.setBalance(t, "ethereum", "5")

	result, err := h.sim.SubmitTrade(context.Background(), &TradeInput{
		TokenID:       "ethereum",
		BaseTokenID:   "tether",
		Amount:        "3",
		Price:         "2900",
		Kind:          types.KindSell,
		WalletAddress: testWallet,
	})
	if err != nil {
		t.Fatalf("SubmitTrade() error = %v", err)
	}
	if result.Total != "8700" {
		t.Errorf("Total = %q, want 8700", result.Total)
	}

	h.waitForStatus(t, result.TransactionID, types.StatusCompleted)

	if got := h.balance(t, "ethereum"); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("ETH = %s, want 2", got)
	}
	if got := h.balance(t, "tether"); !got.Equal(decimal.NewFromInt(8700)) {
		t.Errorf("USDT = %s, want 8700", got)
	}
}

func TestSubmitTrade_InvalidKind(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.sim.SubmitTrade(context.Background(), &TradeInput{
		TokenID:       "ethereum",
		BaseTokenID:   "tether",
		Amount:        "1",
		Price:         "100",
		Kind:          types.TransactionKind("short"),
		WalletAddress: testWallet,
	})
	if errCode(err) != apperrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSettlement_FailureInjectionRefunds(t *testing.T) {
	h := newHarness(t, Options{FailureRate: 1.0})
	h.setBalance(t, "ethereum", "2")

	result, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if err != nil {
		t.Fatalf("SubmitSwap() error = %v", err)
	}

	tx := h.waitForStatus(t, result.TransactionID, types.StatusFailed)
	if tx.TxHash != nil {
		t.Error("failed transaction must not carry a hash")
	}

	// Reservation refunded
	if got := h.balance(t, "ethereum"); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("ETH = %s, want refunded 2", got)
	}
	// Destination untouched
	if _, err := h.ledger.Balances.Get(context.Background(), h.user.ID, "tether"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no USDT balance, got err=%v", err)
	}
}

func TestShutdown_LeavesUnsettledPending(t *testing.T) {
	h := newHarness(t, Options{SettlementDelay: time.Hour})
	h.setBalance(t, "ethereum", "2")

	result, err := h.sim.SubmitSwap(context.Background(), &SwapInput{
		FromTokenID:   "ethereum",
		ToTokenID:     "tether",
		FromAmount:    "1",
		WalletAddress: testWallet,
	})
	if err != nil {
		t.Fatalf("SubmitSwap() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		h.sim.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not cancel the pending settlement timer")
	}

	tx, err := h.ledger.Transactions.GetByID(context.Background(), result.TransactionID)
	if err != nil {
		t.Fatalf("transaction read failed: %v", err)
	}
	if tx.Status != types.StatusPending {
		t.Errorf("Status = %s, want pending after shutdown", tx.Status)
	}
}
