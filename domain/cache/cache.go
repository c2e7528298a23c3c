// Package cache provides the domain interface for the retrieval cache.
// Entries are keyed by the exact query string and never expire for the
// lifetime of the cache instance.
package cache

import "context"

// Cache stores retrieved legislation text by verbatim query.
type Cache interface {
	// Get retrieves a cached value. The bool reports whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value under key, replacing any previous one.
	Set(ctx context.Context, key, value string) error

	// Delete removes a cached entry.
	Delete(ctx context.Context, key string) error

	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close releases the backend. Entries do not outlive Close.
	Close() error
}

// Stats provides cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int64
	MaxSize   int64 // 0 = unbounded
	Evictions int64
}

// StatsProvider is an optional interface for caches that keep statistics.
type StatsProvider interface {
	Stats() Stats
}
