package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipfetch/clipfetch/internal/domain"
)

const cacheKeyPrefix = "resolution:"

// Cache implements domain.Cache on Redis. Entries expire by TTL only;
// the application never deletes them explicitly, and a re-resolution
// overwrites the entry with a fresh TTL (last write wins).
type Cache struct {
	client *Client
}

// NewCache creates a new Cache
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

func cacheKey(key string) string {
	return cacheKeyPrefix + key
}

// Get returns the stored value, or nil when the key is absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return value, nil
}

// Set stores value under key with an expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.client.Set(ctx, cacheKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}
