package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/ingest"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
)

// DefaultEmbedBatch is the number of chunks embedded per call.
const DefaultEmbedBatch = 16

// IndexerConfig wires the legislation indexer.
type IndexerConfig struct {
	Store    knowledge.Store
	Embedder model.Embedder
	Chunker  ingest.Chunker
	// BatchSize is the number of chunks per embedding call.
	BatchSize int
	// Retry applies to each embedding call (default 3 attempts, 4s then 8s).
	Retry *resilience.RetryPolicy
	Now   func() time.Time
}

// Indexer rebuilds the knowledge store from a directory of legislation texts.
type Indexer struct {
	cfg     IndexerConfig
	retrier *resilience.Retrier[embedded]
}

// IndexResult summarizes one indexing pass.
type IndexResult struct {
	Documents int
	Chunks    int
	Tokens    int64
	Duration  time.Duration
}

type embedded struct {
	vectors [][]float32
	usage   model.Usage
}

// NewIndexer validates the configuration.
func NewIndexer(cfg IndexerConfig) (*Indexer, error) {
	if cfg.Store == nil {
		return nil, errors.New("knowledge store is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Chunker == (ingest.Chunker{}) {
		cfg.Chunker = ingest.NewChunker(ingest.DefaultChunkSize, ingest.DefaultChunkOverlap)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedBatch
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	policy := resilience.DefaultRetryPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	return &Indexer{cfg: cfg, retrier: resilience.NewRetrier[embedded](policy)}, nil
}

// Index resets the collection then loads, chunks, embeds and stores every
// text document under dir. Chunk IDs are node_<n> in document order.
func (x *Indexer) Index(ctx context.Context, dir string) (IndexResult, error) {
	start := time.Now()
	docs, err := ingest.LoadDir(dir)
	if err != nil {
		return IndexResult{}, err
	}

	if err := x.cfg.Store.Reset(ctx); err != nil {
		return IndexResult{}, fmt.Errorf("failed to reset collection: %w", err)
	}

	var pending []*knowledge.Chunk
	result := IndexResult{Documents: len(docs)}
	for _, doc := range docs {
		for _, text := range x.cfg.Chunker.Split(doc.Text) {
			pending = append(pending, &knowledge.Chunk{
				ID:   fmt.Sprintf("node_%d", len(pending)),
				Text: text,
				Metadata: map[string]string{
					knowledge.MetaSource: doc.Path,
					knowledge.MetaDocID:  doc.Path,
				},
			})
		}
	}

	for lo := 0; lo < len(pending); lo += x.cfg.BatchSize {
		hi := min(lo+x.cfg.BatchSize, len(pending))
		batch := pending[lo:hi]
		tokens, err := x.embed(ctx, batch)
		if err != nil {
			return result, err
		}
		if err := x.store(ctx, batch); err != nil {
			return result, err
		}
		result.Chunks += len(batch)
		result.Tokens += tokens
	}

	result.Duration = time.Since(start)
	logging.Info().
		Add(logging.Component("indexer")).
		Add(logging.Count("documents", result.Documents)).
		Add(logging.Count("chunks", result.Chunks)).
		Add(logging.Tokens(result.Tokens, 0)).
		Add(logging.Duration(result.Duration)).
		Msg("legislation indexed")
	return result, nil
}

func (x *Indexer) embed(ctx context.Context, batch []*knowledge.Chunk) (int64, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	out, err := x.retrier.Do(ctx, func(ctx context.Context, _ int) (embedded, error) {
		vecs, usage, err := x.cfg.Embedder.Embed(ctx, texts)
		if err != nil {
			return embedded{}, err
		}
		if len(vecs) != len(texts) {
			return embedded{}, fmt.Errorf("%w: got %d embeddings for %d texts", model.ErrEmptyResponse, len(vecs), len(texts))
		}
		return embedded{vectors: vecs, usage: usage}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	now := x.cfg.Now()
	for i, c := range batch {
		c.Embedding = out.vectors[i]
		c.CreatedAt = now
	}
	return out.usage.PromptTokens, nil
}

func (x *Indexer) store(ctx context.Context, batch []*knowledge.Chunk) error {
	if bs, ok := x.cfg.Store.(knowledge.BatchStore); ok {
		if err := bs.UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
		return nil
	}
	for _, c := range batch {
		if err := x.cfg.Store.Upsert(ctx, c); err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Watch re-indexes dir after every burst of changes until ctx is done.
func (x *Indexer) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	w := &ingest.Watcher{
		Dir:      dir,
		Debounce: debounce,
		OnChange: func(ctx context.Context) error {
			_, err := x.Index(ctx, dir)
			return err
		},
	}
	return w.Run(ctx)
}
