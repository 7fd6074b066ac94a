package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenRepository.
type TokenStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.Token
	bySymbol map[string]*models.Token // keyed by uppercased symbol
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byID:     make(map[string]*models.Token),
		bySymbol: make(map[string]*models.Token),
	}
}

// Upsert inserts or replaces a token. Symbols are globally unique.
func (s *TokenStore) Upsert(_ context.Context, token *models.Token) error {
	if token == nil || token.ID == "" || token.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	symbolKey := strings.ToUpper(token.Symbol)
	if existing, ok := s.bySymbol[symbolKey]; ok && existing.ID != token.ID {
		return storage.ErrDuplicateKey
	}

	stored := *token
	s.byID[token.ID] = &stored
	s.bySymbol[symbolKey] = &stored
	return nil
}

// GetByID returns the token with the given id.
func (s *TokenStore) GetByID(_ context.Context, id string) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

// GetBySymbol returns the token with the given symbol, case-insensitively.
func (s *TokenStore) GetBySymbol(_ context.Context, symbol string) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

// List returns all tokens ordered by symbol.
func (s *TokenStore) List(_ context.Context) ([]*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]*models.Token, 0, len(s.byID))
	for _, token := range s.byID {
		copied := *token
		tokens = append(tokens, &copied)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Symbol < tokens[j].Symbol
	})
	return tokens, nil
}
