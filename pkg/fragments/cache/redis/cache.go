// Package redis caches converted fragment output in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "fragments:conv:"

// Config options for the Redis cache
type Config struct {
	URL    string        // redis://[:password@]host:port/db
	TTL    time.Duration // Entry lifetime; zero keeps entries until evicted
	Prefix string        // Key prefix (default: DefaultPrefix)
}

// Cache implements fragments.ConversionCache on top of go-redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// Open parses config.URL, connects and pings the server.
func Open(ctx context.Context, config Config) (*Cache, error) {
	if config.URL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, config.TTL, config.Prefix), nil
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get returns (nil, false, nil) on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores data with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
