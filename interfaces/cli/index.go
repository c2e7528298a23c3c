package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/adcompliance/application"
	"github.com/felixgeelhaar/adcompliance/infrastructure/ingest"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/observability"
)

// indexOptions holds options for the index command.
type indexOptions struct {
	chunkSize    int
	chunkOverlap int
	watch        bool
	debounce     time.Duration
}

// newIndexCmd creates the index command.
func (a *App) newIndexCmd() *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Build the legislation knowledge base",
		Long: `Index every .txt and .md file under a directory into the knowledge base.
The collection is reset first, so the base always mirrors the directory.

With --watch the directory is re-indexed after every burst of changes until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runIndex(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Chunk size in words (overrides config, default 256)")
	cmd.Flags().IntVar(&opts.chunkOverlap, "chunk-overlap", 0, "Chunk overlap in words (overrides config, default 20)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-index when files change")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", ingest.DefaultDebounce, "Quiet period before re-indexing in watch mode")

	return cmd
}

func (a *App) runIndex(ctx context.Context, dir string, opts *indexOptions) error {
	s, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("shutdown failed")
		}
	}()
	cfg := s.cfg

	size, overlap := cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap
	if opts.chunkSize > 0 {
		size = opts.chunkSize
	}
	if opts.chunkOverlap > 0 {
		overlap = opts.chunkOverlap
	}

	store, err := s.knowledgeStore()
	if err != nil {
		return err
	}
	costs := observability.NewCostTracker(s.pricing())
	metered := modelinfra.NewMetered(s.backend, costs,
		modelinfra.WithChatModel(cfg.Provider.ChatModel),
		modelinfra.WithEmbedder(s.backend, cfg.Provider.EmbeddingDeployment),
	)
	indexer, err := application.NewIndexer(application.IndexerConfig{
		Store:    store,
		Embedder: metered,
		Chunker:  ingest.NewChunker(size, overlap),
	})
	if err != nil {
		return err
	}

	res, err := indexer.Index(ctx, dir)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Fprintf(a.stdout, "Indexed %d document(s) into %d chunk(s) (%d embedding tokens, $%.4f)\n",
		res.Documents, res.Chunks, res.Tokens, costs.Stats().TotalCostUSD)

	if !opts.watch {
		return nil
	}
	fmt.Fprintf(a.stdout, "Watching %s for changes\n", dir)
	if err := indexer.Watch(ctx, dir, opts.debounce); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
