package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
	"github.com/defi-dashboard/internal/types"
)

// TransactionStore is an in-memory implementation of
// storage.TransactionRepository. Identifiers are monotonically increasing.
type TransactionStore struct {
	mu     sync.RWMutex
	data   map[int64]*models.Transaction
	nextID int64
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data:   make(map[int64]*models.Transaction),
		nextID: 1,
	}
}

// Create assigns the next id, stamps timestamps and stores the transaction
// as pending unless a status was already set.
func (s *TransactionStore) Create(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx == nil || tx.UserID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *tx
	stored.ID = s.nextID
	s.nextID++
	if stored.Status == "" {
		stored.Status = types.StatusPending
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.data[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

// GetByID returns the transaction with the given id.
func (s *TransactionStore) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

// UpdateStatus mutates status, optionally the hash, and the updated
// timestamp. Returns ErrNotFound for unknown ids.
func (s *TransactionStore) UpdateStatus(_ context.Context, id int64, status string, txHash *string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	tx.Status = types.TransactionStatus(status)
	if txHash != nil {
		tx.TxHash = txHash
	}
	tx.UpdatedAt = time.Now().UTC()

	copied := *tx
	return &copied, nil
}

// ListByUser returns a user's transactions, newest first.
func (s *TransactionStore) ListByUser(_ context.Context, userID string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]*models.Transaction, 0)
	for _, tx := range s.data {
		if tx.UserID == userID {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}
