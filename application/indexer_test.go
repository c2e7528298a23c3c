package application_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/adcompliance/application"
	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/ingest"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/memory"
)

func writeLegislation(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"code_conso.txt": strings.Repeat("Toute publicité doit indiquer le prix. ", 30),
		"credit.md":      "Un crédit vous engage et doit être remboursé.",
		"ignored.pdf":    "binary",
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return dir
}

func fastRetry() *resilience.RetryPolicy {
	return &resilience.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
}

func TestIndexer_Index(t *testing.T) {
	t.Parallel()

	store := memory.NewKnowledgeStore(8)
	embedder := modelinfra.NewScripted()
	indexer, err := application.NewIndexer(application.IndexerConfig{
		Store:     store,
		Embedder:  embedder,
		Chunker:   ingest.NewChunker(40, 5),
		BatchSize: 2,
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	ctx := context.Background()
	// A stale chunk must not survive re-indexing.
	if err := store.Upsert(ctx, &knowledge.Chunk{ID: "stale", Text: "x", Embedding: make([]float32, 8)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	res, err := indexer.Index(ctx, writeLegislation(t))
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if res.Documents != 2 {
		t.Errorf("Documents = %d, want 2", res.Documents)
	}
	if res.Chunks < 3 {
		t.Errorf("Chunks = %d, want at least 3", res.Chunks)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != int64(res.Chunks) {
		t.Errorf("Count() = %d, want %d", count, res.Chunks)
	}
	if _, err := store.Get(ctx, "stale"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Get(stale) error = %v, want %v", err, knowledge.ErrNotFound)
	}

	first, err := store.Get(ctx, "node_0")
	if err != nil {
		t.Fatalf("Get(node_0) error = %v", err)
	}
	if !strings.HasSuffix(first.Metadata[knowledge.MetaSource], "code_conso.txt") {
		t.Errorf("source = %q, want code_conso.txt", first.Metadata[knowledge.MetaSource])
	}
	if want := (res.Chunks + 1) / 2; embedder.EmbedCount() != want {
		t.Errorf("EmbedCount() = %d, want %d", embedder.EmbedCount(), want)
	}
}

func TestIndexer_RetriesEmbedding(t *testing.T) {
	t.Parallel()

	embedder := modelinfra.NewScripted()
	embedder.EmbedErr = func(call int) error {
		if call == 1 {
			return errors.New("429 too many requests")
		}
		return nil
	}
	indexer, err := application.NewIndexer(application.IndexerConfig{
		Store:    memory.NewKnowledgeStore(8),
		Embedder: embedder,
		Retry:    fastRetry(),
	})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	if _, err := indexer.Index(context.Background(), writeLegislation(t)); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if embedder.EmbedCount() != 2 {
		t.Errorf("EmbedCount() = %d, want 2", embedder.EmbedCount())
	}
}

func TestIndexer_MissingDir(t *testing.T) {
	t.Parallel()

	indexer, err := application.NewIndexer(application.IndexerConfig{
		Store:    memory.NewKnowledgeStore(8),
		Embedder: modelinfra.NewScripted(),
	})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}
	if _, err := indexer.Index(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Index() of a missing directory should fail")
	}
}
