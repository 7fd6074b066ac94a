package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/defi-dashboard/internal/models"
)

// QuoteCache is the shared price cache tier consulted before hitting the
// upstream feed. Entries are retained past their freshness window so stale
// values can still be served while the upstream is rate limited; freshness
// is judged by the caller from the quote's UpdatedAt.
type QuoteCache interface {
	Get(ctx context.Context, symbol string) (*models.PriceQuote, bool, error)
	Set(ctx context.Context, quote *models.PriceQuote) error
}

// quoteRetention bounds how long a stale quote stays servable.
const quoteRetention = 24 * time.Hour

// quoteKey builds the cache key for a symbol.
// Format: quote:<symbol>
func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", strings.ToLower(symbol))
}

// RedisQuoteCache stores quotes in Redis so multiple instances share one
// upstream request budget.
type RedisQuoteCache struct {
	redis *RedisCache
}

// NewRedisQuoteCache creates a Redis-backed quote cache.
func NewRedisQuoteCache(redis *RedisCache) *RedisQuoteCache {
	return &RedisQuoteCache{redis: redis}
}

// Get retrieves a cached quote. A miss is not an error.
func (c *RedisQuoteCache) Get(ctx context.Context, symbol string) (*models.PriceQuote, bool, error) {
	payload, err := c.redis.Get(ctx, quoteKey(symbol))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("quote cache get: %w", err)
	}

	var quote models.PriceQuote
	if err := json.Unmarshal([]byte(payload), &quote); err != nil {
		return nil, false, fmt.Errorf("quote cache decode: %w", err)
	}
	return &quote, true, nil
}

// Set stores a quote under the retention TTL.
func (c *RedisQuoteCache) Set(ctx context.Context, quote *models.PriceQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("quote cache encode: %w", err)
	}
	return c.redis.Set(ctx, quoteKey(quote.Symbol), data, quoteRetention)
}

// MemoryQuoteCache is the in-process fallback used when Redis is disabled.
type MemoryQuoteCache struct {
	mu   sync.RWMutex
	data map[string]*models.PriceQuote
}

// NewMemoryQuoteCache creates an in-process quote cache.
func NewMemoryQuoteCache() *MemoryQuoteCache {
	return &MemoryQuoteCache{data: make(map[string]*models.PriceQuote)}
}

// Get retrieves a cached quote.
func (c *MemoryQuoteCache) Get(_ context.Context, symbol string) (*models.PriceQuote, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quote, ok := c.data[quoteKey(symbol)]
	if !ok {
		return nil, false, nil
	}
	if time.Since(quote.UpdatedAt) > quoteRetention {
		return nil, false, nil
	}
	copied := *quote
	return &copied, true, nil
}

// Set stores a quote.
func (c *MemoryQuoteCache) Set(_ context.Context, quote *models.PriceQuote) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *quote
	c.data[quoteKey(quote.Symbol)] = &copied
	return nil
}
