package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/felixgeelhaar/adcompliance/domain/cache"
)

type cacheEntry struct {
	key   string
	value string
}

// Cache is an in-memory cache.Cache. It is unbounded unless WithMaxEntries
// is given, in which case the least recently used entry is evicted.
type Cache struct {
	entries   map[string]*list.Element
	order     *list.List // front = most recently used
	maxSize   int
	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
	closed    bool
}

// CacheOption configures the cache.
type CacheOption func(*Cache)

// WithMaxEntries bounds the cache. Zero keeps it unbounded.
func WithMaxEntries(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// NewCache creates a new in-memory cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", false, cache.ErrClosed
	}

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false, nil
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true, nil
}

// Set stores a value.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrClosed
	}

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
	return nil
}

// Delete removes an entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

// Close drops every entry; later calls fail with cache.ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.closed = true
	return nil
}

// Stats implements cache.StatsProvider.
func (c *Cache) Stats() cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      int64(len(c.entries)),
		MaxSize:   int64(c.maxSize),
		Evictions: c.evictions,
	}
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
