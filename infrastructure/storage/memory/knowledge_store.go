package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
)

// KnowledgeStore is an in-memory chunk store with brute-force cosine search.
type KnowledgeStore struct {
	chunks    map[string]*knowledge.Chunk
	dimension int // 0 = auto-detect from first chunk
	mu        sync.RWMutex
}

// NewKnowledgeStore creates a new in-memory knowledge store.
// If dimension is 0, it is detected from the first chunk.
func NewKnowledgeStore(dimension int) *KnowledgeStore {
	return &KnowledgeStore{
		chunks:    make(map[string]*knowledge.Chunk),
		dimension: dimension,
	}
}

// Upsert stores or replaces a chunk.
func (s *KnowledgeStore) Upsert(ctx context.Context, c *knowledge.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateChunk(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = len(c.Embedding)
	} else if len(c.Embedding) != s.dimension {
		return knowledge.ErrDimensionMismatch
	}

	stored := copyChunk(c)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.chunks[c.ID] = stored
	return nil
}

// UpsertBatch stores several chunks.
func (s *KnowledgeStore) UpsertBatch(ctx context.Context, chunks []*knowledge.Chunk) error {
	for _, c := range chunks {
		if err := s.Upsert(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the topK most similar chunks, best first. Ties are broken
// by ID so results are stable.
func (s *KnowledgeStore) Search(ctx context.Context, embedding []float32, topK int) ([]knowledge.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, knowledge.ErrInvalidEmbedding
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, knowledge.ErrDimensionMismatch
	}

	results := make([]knowledge.SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		results = append(results, knowledge.SearchResult{
			ID:       c.ID,
			Text:     c.Text,
			Score:    CosineSimilarity(embedding, c.Embedding),
			Metadata: c.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(results) {
		topK = len(results)
	}
	results = results[:topK]
	for i := range results {
		results[i].Metadata = copyMetadata(results[i].Metadata)
	}
	return knowledge.Rank(results), nil
}

// Get retrieves a chunk by ID.
func (s *KnowledgeStore) Get(ctx context.Context, id string) (*knowledge.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, knowledge.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return nil, knowledge.ErrNotFound
	}
	return copyChunk(c), nil
}

// Delete removes a chunk by ID.
func (s *KnowledgeStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return knowledge.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[id]; !ok {
		return knowledge.ErrNotFound
	}
	delete(s.chunks, id)
	return nil
}

// List returns chunks matching the filter ordered by ID.
func (s *KnowledgeStore) List(ctx context.Context, filter knowledge.ListFilter) ([]*knowledge.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*knowledge.Chunk
	for _, c := range s.chunks {
		if matchesFilter(c, filter) {
			results = append(results, copyChunk(c))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return paginate(results, filter.Offset, filter.Limit), nil
}

// Count returns the number of chunks.
func (s *KnowledgeStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

// Reset removes every chunk and forgets the detected dimension.
func (s *KnowledgeStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]*knowledge.Chunk)
	s.dimension = 0
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func validateChunk(c *knowledge.Chunk) error {
	if c == nil || c.ID == "" {
		return knowledge.ErrInvalidID
	}
	if len(c.Embedding) == 0 {
		return knowledge.ErrInvalidEmbedding
	}
	return nil
}

func matchesFilter(c *knowledge.Chunk, f knowledge.ListFilter) bool {
	if f.IDPrefix != "" && !strings.HasPrefix(c.ID, f.IDPrefix) {
		return false
	}
	for k, want := range f.Metadata {
		if got, ok := c.Metadata[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func paginate(chunks []*knowledge.Chunk, offset, limit int) []*knowledge.Chunk {
	if offset >= len(chunks) {
		return []*knowledge.Chunk{}
	}
	if offset > 0 {
		chunks = chunks[offset:]
	}
	if limit > 0 && limit < len(chunks) {
		chunks = chunks[:limit]
	}
	return chunks
}

func copyChunk(c *knowledge.Chunk) *knowledge.Chunk {
	out := &knowledge.Chunk{
		ID:        c.ID,
		Embedding: make([]float32, len(c.Embedding)),
		Text:      c.Text,
		Metadata:  copyMetadata(c.Metadata),
		CreatedAt: c.CreatedAt,
	}
	copy(out.Embedding, c.Embedding)
	return out
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

var _ knowledge.BatchStore = (*KnowledgeStore)(nil)
