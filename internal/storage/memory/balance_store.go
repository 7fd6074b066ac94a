package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceRepository.
// Adjust is the atomic read-modify-write primitive the simulator relies on;
// two concurrent debits of the same balance can never interleave.
type BalanceStore struct {
	mu   sync.Mutex
	data map[balanceKey]*models.Balance
}

type balanceKey struct {
	userID  string
	tokenID string
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		data: make(map[balanceKey]*models.Balance),
	}
}

// Get returns the balance for a (user, token) pair.
func (s *BalanceStore) Get(_ context.Context, userID, tokenID string) (*models.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.data[balanceKey{userID, tokenID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *balance
	return &copied, nil
}

// Set overwrites the stored amount for a (user, token) pair, creating the
// row if absent. Negative amounts are rejected.
func (s *BalanceStore) Set(_ context.Context, userID, tokenID string, amount decimal.Decimal) (*models.Balance, error) {
	if userID == "" || tokenID == "" {
		return nil, storage.ErrInvalidInput
	}
	if amount.IsNegative() {
		return nil, storage.ErrInsufficientBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := &models.Balance{
		UserID:    userID,
		TokenID:   tokenID,
		Amount:    amount.String(),
		UpdatedAt: time.Now().UTC(),
	}
	s.data[balanceKey{userID, tokenID}] = balance
	copied := *balance
	return &copied, nil
}

// Adjust atomically applies a signed delta under the store lock. The stored
// amount is untouched when the result would be negative.
func (s *BalanceStore) Adjust(_ context.Context, userID, tokenID string, delta decimal.Decimal) (*models.Balance, error) {
	if userID == "" || tokenID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{userID, tokenID}
	current := decimal.Zero
	if existing, ok := s.data[key]; ok {
		parsed, err := decimal.NewFromString(existing.Amount)
		if err != nil {
			return nil, err
		}
		current = parsed
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return nil, storage.ErrInsufficientBalance
	}

	balance := &models.Balance{
		UserID:    userID,
		TokenID:   tokenID,
		Amount:    next.String(),
		UpdatedAt: time.Now().UTC(),
	}
	s.data[key] = balance
	copied := *balance
	return &copied, nil
}

// ListByUser returns all balances for a user ordered by token id.
func (s *BalanceStore) ListByUser(_ context.Context, userID string) ([]*models.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balances := make([]*models.Balance, 0)
	for key, balance := range s.data {
		if key.userID == userID {
			copied := *balance
			balances = append(balances, &copied)
		}
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].TokenID < balances[j].TokenID
	})
	return balances, nil
}
