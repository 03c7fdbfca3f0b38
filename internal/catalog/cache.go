package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds the last successfully read menu. Implementations swallow their
// own failures; a broken cache only means more scans.
type Cache interface {
	Get(ctx context.Context) ([]Product, bool)
	Set(ctx context.Context, products []Product)
}

type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, key: "catalog:products", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]Product, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.WarnContext(ctx, "catalog cache get failed", "error", err)
		return nil, false
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		slog.WarnContext(ctx, "catalog cache holds bad payload", "error", err)
		return nil, false
	}
	return products, true
}

func (c *RedisCache) Set(ctx context.Context, products []Product) {
	data, err := json.Marshal(products)
	if err != nil {
		slog.WarnContext(ctx, "catalog cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "catalog cache set failed", "error", err)
	}
}
