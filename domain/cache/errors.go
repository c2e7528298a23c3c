package cache

import "errors"

// Domain errors for cache operations.
var (
	// ErrKeyNotFound is returned when a key does not exist in the cache.
	ErrKeyNotFound = errors.New("cache key not found")

	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrConnectionFailed is returned when connection to the cache backend fails.
	ErrConnectionFailed = errors.New("cache connection failed")

	// ErrClosed is returned when the cache is used after Close.
	ErrClosed = errors.New("cache closed")
)
