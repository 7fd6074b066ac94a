package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-dashboard/internal/models"
)

func setupRedisQuoteCache(t *testing.T) (*RedisQuoteCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisQuoteCache(NewRedisCacheFromClient(client)), mr
}

func sampleQuote(symbol string) *models.PriceQuote {
	return &models.PriceQuote{
		TokenID:   "ethereum",
		Symbol:    symbol,
		Price:     "3000",
		Change24h: "1.5",
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisQuoteCache_RoundTrip(t *testing.T) {
	cache, _ := setupRedisQuoteCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleQuote("eth")))

	got, ok, err := cache.Get(ctx, "ETH")
	require.NoError(t, err)
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, "3000", got.Price)
	assert.Equal(t, "ethereum", got.TokenID)
}

func TestRedisQuoteCache_Miss(t *testing.T) {
	cache, _ := setupRedisQuoteCache(t)

	_, ok, err := cache.Get(context.Background(), "DOGE")
	require.NoError(t, err, "a miss is not an error")
	assert.False(t, ok)
}

func TestRedisQuoteCache_RetentionExpiry(t *testing.T) {
	cache, mr := setupRedisQuoteCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleQuote("eth")))

	mr.FastForward(quoteRetention + time.Minute)

	_, ok, err := cache.Get(ctx, "eth")
	require.NoError(t, err)
	assert.False(t, ok, "entries past retention should expire")
}

func TestMemoryQuoteCache_RoundTrip(t *testing.T) {
	cache := NewMemoryQuoteCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleQuote("btc")))

	got, ok, err := cache.Get(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3000", got.Price)

	// Mutating the returned quote must not leak into the cache
	got.Price = "1"
	again, ok, _ := cache.Get(ctx, "btc")
	require.True(t, ok)
	assert.Equal(t, "3000", again.Price)
}
