package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/defi-dashboard/internal/models"
	"github.com/defi-dashboard/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceRepository.
// It holds the last-known quote per token, used as the fallback when the
// upstream feed is unavailable.
type PriceStore struct {
	mu       sync.RWMutex
	byToken  map[string]*models.PriceQuote
	bySymbol map[string]*models.PriceQuote
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		byToken:  make(map[string]*models.PriceQuote),
		bySymbol: make(map[string]*models.PriceQuote),
	}
}

// Upsert merges a fresh quote into the last-known state, stamping the
// update time if the caller left it zero.
func (s *PriceStore) Upsert(_ context.Context, quote *models.PriceQuote) error {
	if quote == nil || quote.TokenID == "" || quote.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *quote
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.byToken[quote.TokenID] = &stored
	s.bySymbol[strings.ToUpper(quote.Symbol)] = &stored
	return nil
}

// GetByTokenID returns the last-known quote for a token id.
func (s *PriceStore) GetByTokenID(_ context.Context, tokenID string) (*models.PriceQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.byToken[tokenID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *quote
	return &copied, nil
}

// GetBySymbol returns the last-known quote for a symbol, case-insensitively.
func (s *PriceStore) GetBySymbol(_ context.Context, symbol string) (*models.PriceQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *quote
	return &copied, nil
}
