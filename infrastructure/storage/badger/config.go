// Package badger provides a BadgerDB-backed retrieval cache.
package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Config configures the BadgerDB cache.
type Config struct {
	// Dir is the directory to store data in. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Entries then never outlive the
	// process.
	InMemory bool

	// KeyPrefix is added to all keys.
	KeyPrefix string

	// Logger is the logger to use (nil silences badger).
	Logger badger.Logger
}

// Option configures the BadgerDB cache.
type Option func(*Config)

// WithDir sets the data directory and disables in-memory mode.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
		c.InMemory = false
	}
}

// WithInMemory enables in-memory storage.
func WithInMemory() Option {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger badger.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the in-memory configuration used for retrieval.
func DefaultConfig() Config {
	return Config{InMemory: true}
}

// Errors
var (
	ErrConnectionFailed = errors.New("badger: connection failed")
)

// openDB opens a BadgerDB database with the given configuration.
func openDB(cfg Config) (*badger.DB, error) {
	dir := cfg.Dir
	if cfg.InMemory {
		dir = ""
	}
	opts := badger.DefaultOptions(dir).
		WithInMemory(cfg.InMemory).
		WithNumVersionsToKeep(1).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}
