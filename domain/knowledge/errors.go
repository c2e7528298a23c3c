package knowledge

import "errors"

// Domain errors for knowledge storage.
var (
	// ErrNotFound indicates the requested chunk was not found.
	ErrNotFound = errors.New("chunk not found")

	// ErrInvalidID indicates the chunk ID is empty.
	ErrInvalidID = errors.New("invalid chunk ID")

	// ErrInvalidEmbedding indicates the embedding is empty.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrDimensionMismatch indicates the embedding dimension doesn't match the collection's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyCollection indicates a store was opened without a collection name.
	ErrEmptyCollection = errors.New("collection name is required")
)
