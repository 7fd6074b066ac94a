// Package memory provides in-memory implementations of the storage
// repositories. All stores are safe for concurrent use.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserRepository.
type UserStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.User
	byWallet map[string]*models.User // keyed by lowercased wallet address
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:     make(map[string]*models.User),
		byWallet: make(map[string]*models.User),
	}
}

// Create adds a new user. Returns ErrDuplicateKey if the id or wallet
// address is already taken.
func (s *UserStore) Create(_ context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[user.ID]; exists {
		return storage.ErrDuplicateKey
	}

	var walletKey string
	if user.WalletAddress != nil {
		walletKey = strings.ToLower(*user.WalletAddress)
		if _, exists := s.byWallet[walletKey]; exists {
			return storage.ErrDuplicateKey
		}
	}

	stored := *user
	s.byID[user.ID] = &stored
	if walletKey != "" {
		s.byWallet[walletKey] = &stored
	}
	return nil
}

// GetByID returns the user with the given id.
func (s *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// GetByWallet returns the user owning the given wallet address.
// Address comparison is case-insensitive.
func (s *UserStore) GetByWallet(_ context.Context, walletAddress string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byWallet[strings.ToLower(walletAddress)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}
