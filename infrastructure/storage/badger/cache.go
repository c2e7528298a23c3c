package badger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/adcompliance/domain/cache"
)

// Cache is a BadgerDB-backed implementation of cache.Cache.
type Cache struct {
	db        *badger.DB
	keyPrefix string
	hits      atomic.Int64
	misses    atomic.Int64
	closeOnce sync.Once
}

// NewCache opens a BadgerDB cache with the given configuration.
func NewCache(cfg Config, opts ...Option) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, keyPrefix: cfg.KeyPrefix}, nil
}

// prefixKey adds the key prefix and cache namespace.
func (c *Cache) prefixKey(key string) []byte {
	return []byte(c.keyPrefix + "cache:" + key)
}

func (c *Cache) namespace() []byte {
	return []byte(c.keyPrefix + "cache:")
}

// Get retrieves a value from the cache.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.prefixKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		c.misses.Add(1)
		return "", false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return "", false, cache.ErrClosed
	case err != nil:
		return "", false, err
	}

	c.hits.Add(1)
	return string(value), true, nil
}

// Set stores a value in the cache.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.prefixKey(key), []byte(value))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return cache.ErrClosed
	}
	return err
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(c.prefixKey(key))
	})
}

// Len counts entries under the cache namespace.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = c.namespace()

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear removes all entries with the cache prefix.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.DropPrefix(c.namespace())
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	size, _ := c.Len(context.Background())
	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   int64(size),
	}
}

// Close closes the database. Safe to call more than once.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.db.Close()
	})
	return err
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
