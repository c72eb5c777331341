package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

// DefaultKey is where the catalog snapshot is stored.
const DefaultKey = "storefront:catalog"

// Config holds the catalog cache connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client for the catalog cache. The connection is
// checked with a ping; a failed ping is returned together with the client so
// the caller can decide whether to run without the cache.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type snapshot struct {
	FetchedAt time.Time        `json:"fetched_at"`
	Products  []domain.Product `json:"products"`
}

// ProductCache implements catalog.Cache on Redis.
type ProductCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewProductCache creates a Redis-backed product list cache.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{
		client: client,
		key:    DefaultKey,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the cached product list. ok is false when nothing is cached.
func (c *ProductCache) Get(ctx context.Context) ([]domain.Product, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get catalog: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if snap.Products == nil {
		snap.Products = []domain.Product{}
	}
	return snap.Products, true, nil
}

// Set stores the product list with the configured TTL.
func (c *ProductCache) Set(ctx context.Context, products []domain.Product) error {
	data, err := json.Marshal(snapshot{FetchedAt: c.now().UTC(), Products: products})
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set catalog: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. Used as a health check.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
