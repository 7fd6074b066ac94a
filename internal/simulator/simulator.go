// Package simulator validates and executes simulated swaps and spot trades.
//
// Execution is two-phase: synchronous admission (validation, price
// resolution, atomic reservation of the debited balance, pending
// transaction row) and asynchronous settlement after a fixed delay
// (credit the destination, stamp a simulated hash, mark completed).
// Settlement is driven by cancellable per-transaction timers so shutdown
// does not leak goroutines; a settlement that cannot credit refunds the
// reservation and marks the transaction failed.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/logging"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
	"github.com/defi-dashboard/internal/types"
)

// UserDirectory resolves or creates users from wallet addresses.
type UserDirectory interface {
	GetOrCreateUserByWallet(ctx context.Context, walletAddress string) (*models.User, error)
}

// PriceResolver returns a reference price for a token, live quote first
// with fallback to the stored one.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, token *models.Token) (decimal.Decimal, error)
}

// Options configures the simulator.
type Options struct {
	SettlementDelay time.Duration
	// FailureRate injects settlement failures (0.0-1.0) so the failed
	// path stays exercised. Zero in production.
	FailureRate float64
}

// Simulator admits and settles simulated transactions.
type Simulator struct {
	tokens   storage.TokenRepository
	balances storage.BalanceRepository
	txs      storage.TransactionRepository
	users    UserDirectory
	prices   PriceResolver
	opts     Options
	logger   *logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a simulator.
func New(ledger *storage.Ledger, users UserDirectory, prices PriceResolver, opts Options) *Simulator {
	if opts.SettlementDelay <= 0 {
		opts.SettlementDelay = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		tokens:   ledger.Tokens,
		balances: ledger.Balances,
		txs:      ledger.Transactions,
		users:    users,
		prices:   prices,
		opts:     opts,
		logger:   logging.GetGlobalLogger().WithField("component", "simulator"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Shutdown cancels pending settlement timers and waits for in-flight
// settlements to finish. Admitted but unsettled transactions stay pending.
func (s *Simulator) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// SwapInput is a request to exchange one token for another at the implied
// market rate.
type SwapInput struct {
	FromTokenID   string
	ToTokenID     string
	FromAmount    string
	WalletAddress string
}

// SwapResult summarizes an admitted swap.
type SwapResult struct {
	TransactionID int64  `json:"transactionId"`
	Status        string `json:"status"`
	FromToken     string `json:"fromToken"`
	ToToken       string `json:"toToken"`
	FromAmount    string `json:"fromAmount"`
	ToAmount      string `json:"toAmount"`
	Rate          string `json:"rate"`
	NetworkFee    string `json:"networkFee"`
}

// SubmitSwap admits a swap and schedules its settlement. All admission
// failures are synchronous; no transaction row is created for rejected
// requests.
func (s *Simulator) SubmitSwap(ctx context.Context, in *SwapInput) (*SwapResult, error) {
	fromToken, err := s.tokens.GetByID(ctx, in.FromTokenID)
	if err != nil {
		return nil, apperrors.NewTokenNotFoundError(in.FromTokenID)
	}
	toToken, err := s.tokens.GetByID(ctx, in.ToTokenID)
	if err != nil {
		return nil, apperrors.NewTokenNotFoundError(in.ToTokenID)
	}
	if fromToken.ID == toToken.ID {
		return nil, apperrors.NewInvalidInputError("cannot swap a token for itself")
	}

	user, err := s.resolveUser(ctx, in.WalletAddress)
	if err != nil {
		return nil, err
	}

	fromAmount, err := parseAmount(in.FromAmount, "fromAmount")
	if err != nil {
		return nil, err
	}

	fromPrice, err := s.resolvePrice(ctx, fromToken)
	if err != nil {
		return nil, err
	}
	toPrice, err := s.resolvePrice(ctx, toToken)
	if err != nil {
		return nil, err
	}

	toAmount := swapOutput(fromAmount, fromPrice, toPrice, toToken.Decimals)
	rate := swapRate(fromPrice, toPrice)

	// Reserve the debited balance atomically; concurrent admissions
	// against the same balance cannot oversell.
	if err := s.reserve(ctx, user.ID, fromToken, fromAmount); err != nil {
		return nil, err
	}

	fee := s.networkFee()
	impact := priceImpactEstimate(fromAmount.Mul(fromPrice))

	tx, err := s.txs.Create(ctx, &models.Transaction{
		UserID:      user.ID,
		Kind:        types.KindSwap,
		Status:      types.StatusPending,
		FromTokenID: fromToken.ID,
		ToTokenID:   toToken.ID,
		FromAmount:  fromAmount.String(),
		ToAmount:    toAmount.String(),
		Price:       rate.String(),
		NetworkFee:  fee.String(),
		Metadata: map[string]string{
			"rate":        rate.String(),
			"priceImpact": impact.String() + "%",
		},
	})
	if err != nil {
		// Roll the reservation back; the swap was never recorded
		s.refund(user.ID, fromToken.ID, fromAmount)
		return nil, apperrors.NewInternalError(err)
	}

	s.scheduleSettlement(tx.ID, user.ID, fromToken.ID, toToken.ID, fromAmount, toAmount)

	return &SwapResult{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		FromToken:     fromToken.Symbol,
		ToToken:       toToken.Symbol,
		FromAmount:    fromAmount.String(),
		ToAmount:      toAmount.String(),
		Rate:          rate.String(),
		NetworkFee:    fee.String(),
	}, nil
}

// TradeInput is a request to buy or sell a token against a base token at a
// caller-supplied price.
type TradeInput struct {
	TokenID       string
	BaseTokenID   string
	Amount        string
	Price         string
	Kind          types.TransactionKind
	WalletAddress string
}

// TradeResult summarizes an admitted spot trade.
type TradeResult struct {
	TransactionID int64  `json:"transactionId"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Token         string `json:"token"`
	BaseToken     string `json:"baseToken"`
	Amount        string `json:"amount"`
	Price         string `json:"price"`
	Total         string `json:"total"`
	NetworkFee    string `json:"networkFee"`
}

// SubmitTrade admits a buy/sell and schedules its settlement. A buy debits
// the base token by amount*price and credits the traded token; a sell is
// the reverse.
func (s *Simulator) SubmitTrade(ctx context.Context, in *TradeInput) (*TradeResult, error) {
	if in.Kind != types.KindBuy && in.Kind != types.KindSell {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("type must be buy or sell, got %q", in.Kind))
	}

	token, err := s.tokens.GetByID(ctx, in.TokenID)
	if err != nil {
		return nil, apperrors.NewTokenNotFoundError(in.TokenID)
	}
	baseToken, err := s.tokens.GetByID(ctx, in.BaseTokenID)
	if err != nil {
		return nil, apperrors.NewTokenNotFoundError(in.BaseTokenID)
	}
	if token.ID == baseToken.ID {
		return nil, apperrors.NewInvalidInputError("token and base token must differ")
	}

	user, err := s.resolveUser(ctx, in.WalletAddress)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(in.Amount, "amount")
	if err != nil {
		return nil, err
	}
	price, err := parseAmount(in.Price, "price")
	if err != nil {
		return nil, err
	}

	// Reference prices must exist for both sides even though the trade
	// executes at the caller's price.
	marketPrice, err := s.resolvePrice(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolvePrice(ctx, baseToken); err != nil {
		return nil, err
	}

	total := tradeTotal(amount, price, baseToken.Decimals)

	// buy: debit base, credit token; sell: debit token, credit base
	debitToken, creditToken := baseToken, token
	debitAmount, creditAmount := total, amount
	if in.Kind == types.KindSell {
		debitToken, creditToken = token, baseToken
		debitAmount, creditAmount = amount, total
	}

	if err := s.reserve(ctx, user.ID, debitToken, debitAmount); err != nil {
		return nil, err
	}

	fee := s.networkFee()

	tx, err := s.txs.Create(ctx, &models.Transaction{
		UserID:      user.ID,
		Kind:        in.Kind,
		Status:      types.StatusPending,
		FromTokenID: debitToken.ID,
		ToTokenID:   creditToken.ID,
		FromAmount:  debitAmount.String(),
		ToAmount:    creditAmount.String(),
		Price:       price.String(),
		NetworkFee:  fee.String(),
		Metadata: map[string]string{
			"pair":        token.Symbol + "/" + baseToken.Symbol,
			"marketPrice": marketPrice.String(),
		},
	})
	if err != nil {
		s.refund(user.ID, debitToken.ID, debitAmount)
		return nil, apperrors.NewInternalError(err)
	}

	s.scheduleSettlement(tx.ID, user.ID, debitToken.ID, creditToken.ID, debitAmount, creditAmount)

	return &TradeResult{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		Type:          string(in.Kind),
		Token:         token.Symbol,
		BaseToken:     baseToken.Symbol,
		Amount:        amount.String(),
		Price:         price.String(),
		Total:         total.String(),
		NetworkFee:    fee.String(),
	}, nil
}

func (s *Simulator) resolveUser(ctx context.Context, walletAddress string) (*models.User, error) {
	if walletAddress == "" {
		return nil, apperrors.NewInvalidInputError("walletAddress is required")
	}
	return s.users.GetOrCreateUserByWallet(ctx, walletAddress)
}

// reserve atomically debits the balance that funds the transaction.
func (s *Simulator) reserve(ctx context.Context, userID string, token *models.Token, amount decimal.Decimal) error {
	_, err := s.balances.Adjust(ctx, userID, token.ID, amount.Neg())
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrInsufficientBalance) {
		held := "0"
		if balance, getErr := s.balances.Get(ctx, userID, token.ID); getErr == nil {
			held = balance.Amount
		}
		return apperrors.NewInsufficientBalanceError(token.Symbol, held, amount.String())
	}
	return apperrors.NewInternalError(err)
}

// refund returns a reservation after a failed create or settlement.
func (s *Simulator) refund(userID, tokenID string, amount decimal.Decimal) {
	if _, err := s.balances.Adjust(context.Background(), userID, tokenID, amount); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"userId":  userID,
			"tokenId": tokenID,
			"amount":  amount.String(),
		}).Error("Reservation refund failed")
	}
}

// scheduleSettlement starts the cancellable settlement timer for an
// admitted transaction.
func (s *Simulator) scheduleSettlement(txID int64, userID, debitTokenID, creditTokenID string, debitAmount, creditAmount decimal.Decimal) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.opts.SettlementDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
			s.settle(txID, userID, debitTokenID, creditTokenID, debitAmount, creditAmount)
		case <-s.ctx.Done():
			// Shutdown: leave the transaction pending
		}
	}()
}

// settle finalizes one transaction: credit the destination and mark
// completed, or refund the reservation and mark failed.
func (s *Simulator) settle(txID int64, userID, debitTokenID, creditTokenID string, debitAmount, creditAmount decimal.Decimal) {
	ctx := context.Background()

	if s.injectFailure() {
		s.fail(ctx, txID, userID, debitTokenID, debitAmount, "injected settlement failure")
		return
	}

	if _, err := s.balances.Adjust(ctx, userID, creditTokenID, creditAmount); err != nil {
		s.fail(ctx, txID, userID, debitTokenID, debitAmount, err.Error())
		return
	}

	hash, err := randomTxHash()
	if err != nil {
		// Extremely unlikely; settle without a hash rather than refund
		s.logger.WithError(err).Error("Simulated hash generation failed")
	}

	var hashPtr *string
	if hash != "" {
		hashPtr = &hash
	}
	if _, err := s.txs.UpdateStatus(ctx, txID, string(types.StatusCompleted), hashPtr); err != nil {
		s.logger.WithError(err).WithField("transactionId", txID).Error("Settlement status update failed")
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"transactionId": txID,
		"txHash":        hash,
	}).Debug("Transaction settled")
}

// fail refunds the reservation and marks the transaction failed.
func (s *Simulator) fail(ctx context.Context, txID int64, userID, debitTokenID string, debitAmount decimal.Decimal, reason string) {
	s.refund(userID, debitTokenID, debitAmount)
	if _, err := s.txs.UpdateStatus(ctx, txID, string(types.StatusFailed), nil); err != nil {
		s.logger.WithError(err).WithField("transactionId", txID).Error("Failure status update failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"transactionId": txID,
		"reason":        reason,
	}).Warn("Transaction settlement failed")
}

func (s *Simulator) injectFailure() bool {
	if s.opts.FailureRate <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.opts.FailureRate
}

func (s *Simulator) networkFee() decimal.Decimal {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return randomNetworkFee(s.rng)
}

// resolvePrice resolves a reference price and rejects dead quotes. A zero
// price must never reach the division in the swap math.
func (s *Simulator) resolvePrice(ctx context.Context, token *models.Token) (decimal.Decimal, error) {
	price, err := s.prices.ResolvePrice(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, apperrors.NewPriceUnavailableError(token.Symbol)
	}
	return price, nil
}

// parseAmount parses a positive decimal string.
func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, apperrors.NewInvalidInputError(field + " is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewInvalidInputError(field + " must be a decimal number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidInputError(field + " must be positive")
	}
	return amount, nil
}
