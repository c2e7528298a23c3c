// Package knowledge provides the domain model for the legislation knowledge
// base: embedded text chunks searched by semantic similarity.
package knowledge

import (
	"context"
	"time"
)

// DefaultCollection is the collection legislation chunks are indexed into.
const DefaultCollection = "legislation_PUB"

// Metadata keys set on indexed chunks.
const (
	MetaSource = "source"
	MetaDocID  = "doc_id"
)

// Chunk is an embedded passage of a legislative document.
type Chunk struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// SearchResult is one ranked match of a similarity search.
type SearchResult struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float32           `json:"score"` // cosine similarity
	Rank     int               `json:"rank"`  // 1-based
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListFilter provides filtering options for list operations.
type ListFilter struct {
	IDPrefix string
	Metadata map[string]string // all keys must match
	Limit    int
	Offset   int
}

// Store holds one collection of chunks.
type Store interface {
	// Upsert stores or replaces a chunk.
	Upsert(ctx context.Context, chunk *Chunk) error

	// Search returns the topK chunks most similar to the embedding, best first.
	Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)

	// Get retrieves a chunk by ID.
	Get(ctx context.Context, id string) (*Chunk, error)

	// Delete removes a chunk by ID.
	Delete(ctx context.Context, id string) error

	// List returns chunks matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Chunk, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int64, error)

	// Reset removes every chunk of the collection.
	Reset(ctx context.Context) error
}

// BatchStore is implemented by stores that can write many chunks at once.
type BatchStore interface {
	Store
	UpsertBatch(ctx context.Context, chunks []*Chunk) error
}

// Rank assigns 1-based ranks to results already sorted best first.
func Rank(results []SearchResult) []SearchResult {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
