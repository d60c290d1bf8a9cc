package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velomart/storefront/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func testCart(sessionID string) *domain.Cart {
	cart := &domain.Cart{
		SessionID: sessionID,
		Lines: []domain.CartLine{
			{CartKey: "k1", ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromFloat(50.00), Currency: "PLN"},
			{CartKey: "k2", ProductID: 2, Quantity: 3, UnitPrice: decimal.NewFromFloat(9.99), Currency: "PLN"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	cart.Recompute()
	return cart
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := "session123"

	cart := testCart(sessionID)

	// Manually set data in miniredis
	cartJSON, _ := json.Marshal(cart)
	mr.Set(cacheKey(sessionID), string(cartJSON))

	result, err := cache.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, result.SessionID)
	assert.Len(t, result.Lines, 2)
	assert.True(t, result.Lines[0].UnitPrice.Equal(decimal.NewFromFloat(50.00)))
	assert.Equal(t, 5, result.TotalQuantity)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := cache.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestGet_CorruptedData(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cacheKey("session123"), "{not json")

	_, err := cache.Get(context.Background(), "session123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_ThenGet(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	cart := testCart("session123")

	require.NoError(t, cache.Set(ctx, "session123", cart))

	result, err := cache.Get(ctx, "session123")
	require.NoError(t, err)
	assert.Equal(t, cart.SessionID, result.SessionID)
	assert.True(t, result.TotalPrice.Equal(cart.TotalPrice))
}

func TestDelete(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "session123", testCart("session123")))
	require.NoError(t, cache.Delete(ctx, "session123"))

	_, err := cache.Get(ctx, "session123")
	require.ErrorIs(t, err, ErrCacheMiss)
}
