package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipfetch/clipfetch/internal/config"
)

const connectTimeout = 5 * time.Second

// Client owns the Redis connection shared by the cache and the broker.
type Client struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection before returning.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.MaxRetries = cfg.MaxRetries
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return &Client{client: client}, nil
}

// Close releases the connection pool
func (c *Client) Close() error {
	return c.client.Close()
}

// Health pings the server
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
