// Package cache holds the Redis-backed auth cache and request throttles.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultAuthTTL  = 5 * time.Minute
	defaultPoolSize = 10
)

// Cache wraps a Redis client.
type Cache struct {
	client   *redis.Client
	authTTL  time.Duration
	poolSize int
}

// Option configures a Cache.
type Option func(*Cache)

// WithAuthTTL sets how long authenticated token contexts stay cached.
func WithAuthTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.authTTL = ttl
		}
	}
}

// WithPoolSize sets the Redis connection pool size. Only New honours it.
func WithPoolSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

func newCache(opts []Option) *Cache {
	c := &Cache{authTTL: defaultAuthTTL, poolSize: defaultPoolSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New dials redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := newCache(opts)
	redisOpts.PoolSize = c.poolSize
	redisOpts.MinIdleConns = max(1, c.poolSize/5)
	redisOpts.PoolTimeout = 4 * time.Second
	redisOpts.ConnMaxIdleTime = 5 * time.Minute
	c.client = redis.NewClient(redisOpts)

	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// NewFromClient wraps an existing client. Pool options are ignored.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := newCache(opts)
	c.client = client
	return c
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client for the completion job stream.
func (c *Cache) Client() *redis.Client {
	return c.client
}
