// Package storage defines the ledger repository interfaces and their
// supporting cache tiers. The ledger is authoritative in-memory state; the
// interfaces exist so a durable backend can replace the memory maps without
// touching callers.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/defi-dashboard/internal/models"
)

// UserRepository stores dashboard users keyed by id and wallet address.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByWallet(ctx context.Context, walletAddress string) (*models.User, error)
}

// TokenRepository stores static token reference data.
type TokenRepository interface {
	Upsert(ctx context.Context, token *models.Token) error
	GetByID(ctx context.Context, id string) (*models.Token, error)
	GetBySymbol(ctx context.Context, symbol string) (*models.Token, error)
	List(ctx context.Context) ([]*models.Token, error)
}

// BalanceRepository stores (user, token) balances with upsert semantics.
type BalanceRepository interface {
	Get(ctx context.Context, userID, tokenID string) (*models.Balance, error)
	Set(ctx context.Context, userID, tokenID string, amount decimal.Decimal) (*models.Balance, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Balance, error)

	// Adjust atomically applies a signed delta to a balance, creating the
	// row if absent. Returns ErrInsufficientBalance when the result would
	// be negative; the stored amount is left untouched in that case.
	Adjust(ctx context.Context, userID, tokenID string, delta decimal.Decimal) (*models.Balance, error)
}

// TransactionRepository stores simulated transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status string, txHash *string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error)
}

// PriceRepository stores last-known quotes per token.
type PriceRepository interface {
	Upsert(ctx context.Context, quote *models.PriceQuote) error
	GetByTokenID(ctx context.Context, tokenID string) (*models.PriceQuote, error)
	GetBySymbol(ctx context.Context, symbol string) (*models.PriceQuote, error)
}

// Ledger bundles the repositories that make up the in-memory ledger.
type Ledger struct {
	Users        UserRepository
	Tokens       TokenRepository
	Balances     BalanceRepository
	Transactions TransactionRepository
	Prices       PriceRepository
}

// SeedTokens loads the static token registry into the ledger.
func (l *Ledger) SeedTokens(ctx context.Context, tokens []*models.Token) error {
	for _, token := range tokens {
		if err := l.Tokens.Upsert(ctx, token); err != nil {
			return err
		}
	}
	return nil
}
