package redis

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/adcompliance/domain/cache"
)

// Cache is a Redis-backed implementation of cache.Cache. Every instance
// writes under its own namespace, and Close removes that namespace so
// entries never outlive the retriever that owns them.
type Cache struct {
	client    *redis.Client
	namespace string
	hits      atomic.Int64
	misses    atomic.Int64
	closed    atomic.Bool
}

// NewCache connects to Redis and creates a cache under a fresh namespace.
func NewCache(cfg Config, opts ...ConfigOption) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(cache.ErrConnectionFailed, err)
	}

	return NewCacheFromClient(client, cfg.KeyPrefix), nil
}

// NewCacheFromClient creates a cache from an existing Redis client.
func NewCacheFromClient(client *redis.Client, keyPrefix string) *Cache {
	return &Cache{
		client:    client,
		namespace: namespaceFor(keyPrefix, uuid.NewString()),
	}
}

func namespaceFor(prefix, instance string) string {
	return prefix + instance + ":cache:"
}

// Namespace returns the key prefix owned by this instance.
func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) key(k string) string {
	return c.namespace + k
}

// Get retrieves a value from the cache.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.closed.Load() {
		return "", false, cache.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	v, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	c.hits.Add(1)
	return v, true, nil
}

// Set stores a value with no expiration.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}
	return c.client.Set(ctx, c.key(key), value, 0).Err()
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Del(ctx, c.key(key)).Err()
}

// Len counts the keys under this instance's namespace.
func (c *Cache) Len(ctx context.Context) (int, error) {
	n := 0
	err := c.scan(ctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	return n, err
}

// Clear removes all entries of this instance.
func (c *Cache) Clear(ctx context.Context) error {
	return c.scan(ctx, func(keys []string) error {
		return c.client.Del(ctx, keys...).Err()
	})
}

// scan visits the namespace keys in batches of 100.
func (c *Cache) scan(ctx context.Context, fn func([]string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	iter := c.client.Scan(ctx, 0, c.namespace+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := fn(keys); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return fn(keys)
	}
	return nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Close clears this instance's entries and closes the connection.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	clearErr := c.Clear(context.Background())
	return errors.Join(clearErr, c.client.Close())
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
