package service

import (
	"context"
	"errors"
	"fmt"
	mrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/logging"
	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
)

// Quoter resolves a live market quote for a token symbol.
type Quoter interface {
	GetQuote(ctx context.Context, symbol string) (*models.PriceQuote, error)
}

// LedgerService owns the demo ledger: user onboarding with seeded balances,
// portfolio aggregation, transaction history, and price resolution with a
// stored-quote fallback.
type LedgerService struct {
	users    storage.UserRepository
	tokens   storage.TokenRepository
	balances storage.BalanceRepository
	txs      storage.TransactionRepository
	prices   storage.PriceRepository
	quotes   Quoter
	logger   *logging.Logger

	rngMu sync.Mutex
	rng   *mrand.Rand
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(ledger *storage.Ledger, quotes Quoter) *LedgerService {
	return &LedgerService{
		users:    ledger.Users,
		tokens:   ledger.Tokens,
		balances: ledger.Balances,
		txs:      ledger.Transactions,
		prices:   ledger.Prices,
		quotes:   quotes,
		logger:   logging.WithField("service", "ledger"),
		rng:      mrand.New(mrand.NewSource(time.Now().UnixNano())),
	}
}

// Output types

// PortfolioAsset is one holding in a portfolio view.
type PortfolioAsset struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
	Value   string `json:"value"`
	Price   string `json:"price"`
}

// PortfolioView aggregates a wallet's holdings at current prices.
type PortfolioView struct {
	WalletAddress string           `json:"walletAddress"`
	TotalValue    string           `json:"totalValue"`
	Assets        []PortfolioAsset `json:"assets"`
}

// TransactionRecord is a symbol-enriched ledger transaction.
type TransactionRecord struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Status     string            `json:"status"`
	FromToken  *string           `json:"fromToken,omitempty"`
	ToToken    *string           `json:"toToken,omitempty"`
	FromAmount string            `json:"fromAmount"`
	ToAmount   string            `json:"toAmount"`
	Price      string            `json:"price"`
	TxHash     *string           `json:"txHash,omitempty"`
	NetworkFee string            `json:"networkFee"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// PriceView merges catalog metadata with a token's current quote.
type PriceView struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	LogoURL        string  `json:"logoUrl"`
	Price          string  `json:"price"`
	PriceChange24h string  `json:"priceChange24h"`
	Volume24h      *string `json:"volume24h,omitempty"`
	MarketCap      *string `json:"marketCap,omitempty"`
}

// GasPriceView is the simulated network gas price.
type GasPriceView struct {
	GasPrice  string    `json:"gasPrice"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

// GetOrCreateUserByWallet returns the user owning a wallet address, creating
// and seeding one on first sight. Creation is idempotent: an existing user is
// returned untouched and never reseeded.
func (s *LedgerService) GetOrCreateUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid wallet address: %q", walletAddress))
	}

	user, err := s.users.GetByWallet(ctx, walletAddress)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	wallet := walletAddress
	user = &models.User{
		ID:            uuid.New().String(),
		Username:      generatedUsername(walletAddress),
		WalletAddress: &wallet,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a create race; the winner's user is the one to use
			return s.users.GetByWallet(ctx, walletAddress)
		}
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.seedBalances(ctx, user.ID); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"userId": user.ID,
		"wallet": walletAddress,
	}).Info("Created and seeded demo user")

	return user, nil
}

// seedBalances gives a new user a placeholder holding in every registered
// token. Stablecoins get larger magnitudes so seeded portfolios look like
// cash plus positions.
func (s *LedgerService) seedBalances(ctx context.Context, userID string) error {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	for _, token := range tokens {
		if _, err := s.balances.Set(ctx, userID, token.ID, s.seedAmount(token)); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	return nil
}

func (s *LedgerService) seedAmount(token *models.Token) decimal.Decimal {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	if token.Stablecoin {
		amount := 1000 + s.rng.Float64()*9000
		return decimal.NewFromFloat(amount).Truncate(2)
	}
	amount := 0.1 + s.rng.Float64()*9.9
	return decimal.NewFromFloat(amount).Truncate(4)
}

// GetPortfolio values a wallet's holdings at current prices. An unseen wallet
// is created and seeded first. Tokens with no resolvable price contribute
// zero value.
func (s *LedgerService) GetPortfolio(ctx context.Context, walletAddress string) (*PortfolioView, error) {
	user, err := s.GetOrCreateUserByWallet(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	balances, err := s.balances.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	view := &PortfolioView{
		WalletAddress: walletAddress,
		Assets:        make([]PortfolioAsset, 0, len(balances)),
	}

	total := decimal.Zero
	for _, balance := range balances {
		token, err := s.tokens.GetByID(ctx, balance.TokenID)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}

		price := decimal.Zero
		if resolved, err := s.ResolvePrice(ctx, token); err == nil {
			price = resolved
		}

		amount, err := decimal.NewFromString(balance.Amount)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		value := amount.Mul(price).Truncate(2)
		total = total.Add(value)

		view.Assets = append(view.Assets, PortfolioAsset{
			ID:      token.ID,
			Token:   token.Symbol,
			Balance: balance.Amount,
			Value:   value.String(),
			Price:   price.String(),
		})
	}

	view.TotalValue = total.String()
	return view, nil
}

// ListTransactions returns a wallet's transaction history, newest first.
// Unlike the portfolio view this never creates a user: an unseen wallet is
// a not-found error.
func (s *LedgerService) ListTransactions(ctx context.Context, walletAddress string) ([]*TransactionRecord, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid wallet address: %q", walletAddress))
	}

	user, err := s.users.GetByWallet(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(walletAddress)
		}
		return nil, apperrors.NewInternalError(err)
	}

	txs, err := s.txs.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	records := make([]*TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, &TransactionRecord{
			ID:         tx.ID,
			Type:       string(tx.Kind),
			Status:     string(tx.Status),
			FromToken:  s.symbolFor(ctx, tx.FromTokenID),
			ToToken:    s.symbolFor(ctx, tx.ToTokenID),
			FromAmount: tx.FromAmount,
			ToAmount:   tx.ToAmount,
			Price:      tx.Price,
			TxHash:     tx.TxHash,
			NetworkFee: tx.NetworkFee,
			Metadata:   tx.Metadata,
			CreatedAt:  tx.CreatedAt,
			UpdatedAt:  tx.UpdatedAt,
		})
	}
	return records, nil
}

func (s *LedgerService) symbolFor(ctx context.Context, tokenID string) *string {
	if tokenID == "" {
		return nil
	}
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return &tokenID
	}
	return &token.Symbol
}

// ListTokens returns the registered token catalog.
func (s *LedgerService) ListTokens(ctx context.Context) ([]*models.Token, error) {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tokens, nil
}

// ListPrices returns one entry per registered token, merging catalog
// metadata with the current quote: the live quote when the upstream allows
// it, the last stored quote otherwise, and a zero-valued placeholder when
// the token has never been priced.
func (s *LedgerService) ListPrices(ctx context.Context) ([]*PriceView, error) {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	views := make([]*PriceView, 0, len(tokens))
	for _, token := range tokens {
		view := &PriceView{
			ID:             token.ID,
			Symbol:         token.Symbol,
			Name:           token.Name,
			LogoURL:        token.LogoURL,
			Price:          "0",
			PriceChange24h: "0",
		}

		quote, err := s.quotes.GetQuote(ctx, token.Symbol)
		if err != nil {
			quote, err = s.prices.GetByTokenID(ctx, token.ID)
		}
		if err == nil {
			view.Price = quote.Price
			view.PriceChange24h = quote.Change24h
			view.Volume24h = quote.Volume24h
			view.MarketCap = quote.MarketCap
		}

		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

// ResolvePrice returns a token's USD price for valuation and swap math: the
// live quote first, the last stored quote as a fallback, otherwise a
// price-unavailable error. The upstream maps dead or delisted coins to a
// zero price; a non-positive quote is treated as unavailable so it never
// reaches the swap division.
func (s *LedgerService) ResolvePrice(ctx context.Context, token *models.Token) (decimal.Decimal, error) {
	if quote, err := s.quotes.GetQuote(ctx, token.Symbol); err == nil {
		if price, parseErr := decimal.NewFromString(quote.Price); parseErr == nil && price.IsPositive() {
			return price, nil
		}
	}

	quote, err := s.prices.GetByTokenID(ctx, token.ID)
	if err != nil {
		return decimal.Zero, apperrors.NewPriceUnavailableError(token.Symbol)
	}
	price, err := decimal.NewFromString(quote.Price)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, apperrors.NewPriceUnavailableError(token.Symbol)
	}
	return price, nil
}

// GasPrice returns a simulated network gas price between 20 and 120 gwei.
func (s *LedgerService) GasPrice() *GasPriceView {
	s.rngMu.Lock()
	gwei := 20 + s.rng.Float64()*100
	s.rngMu.Unlock()

	return &GasPriceView{
		GasPrice:  decimal.NewFromFloat(gwei).Truncate(2).String(),
		Unit:      "gwei",
		Timestamp: time.Now().UTC(),
	}
}

// generatedUsername derives a readable demo username from the wallet.
func generatedUsername(walletAddress string) string {
	suffix := strings.ToLower(walletAddress)
	suffix = strings.TrimPrefix(suffix, "0x")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "user_" + suffix
}
