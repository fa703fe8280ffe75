package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-engine/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	productTTL    time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, productTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		productTTL:    productTTL,
	}, nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// GetProduct returns the cached product snapshot. A miss is (nil, false, nil).
func (c *Client) GetProduct(ctx context.Context, productID int64) (*models.Product, bool, error) {
	raw, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		// A snapshot we cannot read is treated as a miss and overwritten later.
		return nil, false, nil
	}
	return &product, true, nil
}

// SetProduct stores a product snapshot with the configured TTL
func (c *Client) SetProduct(ctx context.Context, product *models.Product) error {
	raw, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product %d: %w", product.ID, err)
	}
	return c.rdb.Set(ctx, productKey(product.ID), raw, c.productTTL).Err()
}

// InvalidateProduct drops a product snapshot
func (c *Client) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, productKey(productID)).Err()
}

// AcquireLock acquires a distributed lock. The returned token must be passed
// to ReleaseLock; it prevents releasing a lock that expired and was taken by someone else.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock if it is still owned by token
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(key)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
