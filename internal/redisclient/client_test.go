package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"order-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires TEST_REDIS_ADDR")
	}

	client, err := NewClient(addr, os.Getenv("TEST_REDIS_PASSWORD"), 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestProductSnapshots(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()
	id := time.Now().UnixNano()
	t.Cleanup(func() { client.InvalidateProduct(ctx, id) })

	got, ok, err := client.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	product := &models.Product{
		ID:         id,
		Name:       "Kettle",
		Price:      decimal.RequireFromString("25.00"),
		StockCount: 4,
		InStock:    true,
		Active:     true,
	}
	require.NoError(t, client.SetProduct(ctx, product))

	got, ok, err = client.GetProduct(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Kettle", got.Name)
	assert.Equal(t, 4, got.StockCount)
	assert.True(t, got.Price.Equal(product.Price))

	require.NoError(t, client.InvalidateProduct(ctx, id))
	_, ok, err = client.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckoutLock(t *testing.T) {
	client := openTestClient(t)
	ctx := context.Background()
	key := "checkout:test:" + uuid.New().String()

	token, ok, err := client.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { client.ReleaseLock(ctx, key, token) })

	_, ok, err = client.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held")

	// A stale token must not release someone else's lock.
	require.NoError(t, client.ReleaseLock(ctx, key, "not-the-owner"))
	_, ok, err = client.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, key, token))
	next, ok, err := client.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, token, next)
	require.NoError(t, client.ReleaseLock(ctx, key, next))
}
