package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/adcompliance/domain/cache"
	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
)

func TestKnowledgeStore_SearchRanksByCosine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewKnowledgeStore(0)
	chunks := []*knowledge.Chunk{
		{ID: "node_0", Embedding: []float32{1, 0, 0}, Text: "prix"},
		{ID: "node_1", Embedding: []float32{0, 1, 0}, Text: "dates"},
		{ID: "node_2", Embedding: []float32{0.9, 0.1, 0}, Text: "mentions"},
	}
	if err := s.UpsertBatch(ctx, chunks); err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != "node_0" || results[0].Rank != 1 {
		t.Errorf("results[0] = %s rank %d, want node_0 rank 1", results[0].ID, results[0].Rank)
	}
	if results[1].ID != "node_2" || results[1].Rank != 2 {
		t.Errorf("results[1] = %s rank %d, want node_2 rank 2", results[1].ID, results[1].Rank)
	}
}

func TestKnowledgeStore_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewKnowledgeStore(2)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"empty id", s.Upsert(ctx, &knowledge.Chunk{Embedding: []float32{1, 0}}), knowledge.ErrInvalidID},
		{"empty embedding", s.Upsert(ctx, &knowledge.Chunk{ID: "a"}), knowledge.ErrInvalidEmbedding},
		{"dimension", s.Upsert(ctx, &knowledge.Chunk{ID: "a", Embedding: []float32{1}}), knowledge.ErrDimensionMismatch},
		{"delete missing", s.Delete(ctx, "missing"), knowledge.ErrNotFound},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, tt.err, tt.want)
		}
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Get() error = %v, want %v", err, knowledge.ErrNotFound)
	}
}

func TestKnowledgeStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewKnowledgeStore(0)
	_ = s.Upsert(ctx, &knowledge.Chunk{ID: "a", Embedding: []float32{1, 2}, Metadata: map[string]string{"source": "x.txt"}})

	got, _ := s.Get(ctx, "a")
	got.Embedding[0] = 99
	got.Metadata["source"] = "changed"

	again, _ := s.Get(ctx, "a")
	if again.Embedding[0] != 1 || again.Metadata["source"] != "x.txt" {
		t.Errorf("stored chunk was mutated through a returned copy")
	}
}

func TestKnowledgeStore_ListAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewKnowledgeStore(0)
	for i := 0; i < 5; i++ {
		src := "a.txt"
		if i%2 == 1 {
			src = "b.txt"
		}
		_ = s.Upsert(ctx, &knowledge.Chunk{
			ID:        fmt.Sprintf("node_%d", i),
			Embedding: []float32{float32(i + 1), 1},
			Metadata:  map[string]string{knowledge.MetaSource: src},
		})
	}

	list, err := s.List(ctx, knowledge.ListFilter{Metadata: map[string]string{knowledge.MetaSource: "a.txt"}})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("len(List) = %d, want 3", len(list))
	}

	page, _ := s.List(ctx, knowledge.ListFilter{IDPrefix: "node_", Offset: 1, Limit: 2})
	if len(page) != 2 || page[0].ID != "node_1" {
		t.Errorf("page = %v, want 2 chunks starting at node_1", page)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count() after Reset = %d, want 0", n)
	}
	// dimension is forgotten on reset
	if err := s.Upsert(ctx, &knowledge.Chunk{ID: "x", Embedding: []float32{1, 2, 3}}); err != nil {
		t.Errorf("Upsert() after Reset error = %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CosineSimilarity(tt.a, tt.b); got != tt.want {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCache_Unbounded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCache()
	for i := 0; i < 2000; i++ {
		if err := c.Set(ctx, fmt.Sprintf("q%d", i), "v"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if n, _ := c.Len(ctx); n != 2000 {
		t.Errorf("Len() = %d, want 2000", n)
	}
	if st := c.Stats(); st.Evictions != 0 || st.MaxSize != 0 {
		t.Errorf("Stats() = %+v, want no evictions and no bound", st)
	}
}

func TestCache_LRUBound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCache(WithMaxEntries(2))
	_ = c.Set(ctx, "a", "1")
	_ = c.Set(ctx, "b", "2")
	_, _, _ = c.Get(ctx, "a") // a becomes most recent
	_ = c.Set(ctx, "c", "3")

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("Get(b) found, want evicted")
	}
	if v, ok, _ := c.Get(ctx, "a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, true", v, ok)
	}
	st := c.Stats()
	if st.Evictions != 1 || st.Hits != 2 || st.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 eviction, 2 hits, 1 miss", st)
	}
}

func TestCache_ExactKeyAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCache()
	_ = c.Set(ctx, "Prix barré", "texte")

	if _, ok, _ := c.Get(ctx, "prix barré"); ok {
		t.Error("keys must match verbatim")
	}
	if err := c.Set(ctx, "", "x"); !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set(\"\") error = %v, want %v", err, cache.ErrInvalidKey)
	}

	_ = c.Close()
	if _, _, err := c.Get(ctx, "Prix barré"); !errors.Is(err, cache.ErrClosed) {
		t.Errorf("Get() after Close error = %v, want %v", err, cache.ErrClosed)
	}
}

func newTestTool(t *testing.T, name string) tool.Tool {
	t.Helper()
	return tool.NewBuilder(name).
		WithDescription(name).
		WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
			return tool.NewResult(name), nil
		}).
		MustBuild()
}

func TestToolRegistry_PreservesOrder(t *testing.T) {
	t.Parallel()

	r := NewToolRegistry()
	names := []string{"extract_raw_text", "analyze_vision", "verify_consistency"}
	for _, n := range names {
		if err := r.Register(newTestTool(t, n)); err != nil {
			t.Fatalf("Register(%s) error = %v", n, err)
		}
	}

	got := r.Names()
	for i := range names {
		if got[i] != names[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, got[i], names[i])
		}
	}

	if err := r.Register(newTestTool(t, "analyze_vision")); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("Register(duplicate) error = %v, want %v", err, tool.ErrToolExists)
	}

	if err := r.Unregister("analyze_vision"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if r.Has("analyze_vision") || r.Count() != 2 {
		t.Errorf("registry still holds analyze_vision")
	}
	if list := r.List(); list[1].Name() != "verify_consistency" {
		t.Errorf("List()[1] = %s, want verify_consistency", list[1].Name())
	}
	if err := r.Unregister("missing"); !errors.Is(err, tool.ErrToolNotFound) {
		t.Errorf("Unregister(missing) error = %v, want %v", err, tool.ErrToolNotFound)
	}
}
