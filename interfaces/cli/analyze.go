package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/adcompliance/application"
	domainconfig "github.com/felixgeelhaar/adcompliance/domain/config"
	"github.com/felixgeelhaar/adcompliance/infrastructure/input"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/planner"
	"github.com/felixgeelhaar/adcompliance/infrastructure/resilience"
	"github.com/felixgeelhaar/adcompliance/infrastructure/retrieval"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/filesystem"
	"github.com/felixgeelhaar/adcompliance/infrastructure/telemetry"
	"github.com/felixgeelhaar/adcompliance/pack/compliance"
)

// analyzeOptions holds options for the analyze command.
type analyzeOptions struct {
	recursive     bool
	outputDir     string
	maxIterations int
	timeout       time.Duration
	pdfConverter  string
}

// newAnalyzeCmd creates the analyze command.
func (a *App) newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze advertisement images for compliance",
		Long: `Analyze one image, or every image of a directory, and write one JSON
report per file under <output>/<YYYYMMDD>/<stem>/.

Files are analyzed one after the other. A file that fails is reported and the
batch goes on; an interrupt stops the batch after the current file.

Examples:
  # Analyze one image
  adcompliance analyze pub.jpg

  # Analyze a directory tree, converting PDFs with pdftoppm
  adcompliance analyze -r ./ads --pdf-converter "pdftoppm -png -singlefile {in} {out}"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (overrides config, default outputs)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Maximum reasoning iterations per file (overrides config, default 30)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Timeout per file (overrides config, default 300s)")
	cmd.Flags().StringVar(&opts.pdfConverter, "pdf-converter", "", "Command template converting a PDF to an image, with {in} and {out}")

	return cmd
}

func (a *App) runAnalyze(ctx context.Context, path string, opts *analyzeOptions) error {
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

	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.maxIterations > 0 {
		cfg.Agent.MaxIterations = opts.maxIterations
	}
	if opts.timeout > 0 {
		cfg.Agent.Timeout = domainconfig.Duration(opts.timeout)
	}
	if opts.pdfConverter != "" {
		cfg.Output.PDFConverter = opts.pdfConverter
	}

	inputOpts := input.Options{Recursive: opts.recursive, AllowPDF: cfg.Output.PDFConverter != ""}
	paths, err := input.Collect(path, inputOpts)
	if err != nil {
		return err
	}

	var converter input.Converter
	if cfg.Output.PDFConverter != "" {
		c, err := input.NewCommandConverter(cfg.Output.PDFConverter, cfg.Output.Dir)
		if err != nil {
			return err
		}
		converter = c
	}

	in, err := s.instrument(ctx)
	if err != nil {
		return err
	}
	store, err := s.knowledgeStore()
	if err != nil {
		return err
	}
	c, err := s.retrievalCache()
	if err != nil {
		return err
	}
	reports, err := filesystem.NewReportStore(cfg.Output.Dir)
	if err != nil {
		return err
	}

	metered := modelinfra.NewMetered(s.backend, in.costs,
		modelinfra.WithChatModel(cfg.Provider.ChatModel),
		modelinfra.WithEmbedder(s.backend, cfg.Provider.EmbeddingDeployment),
	)

	r := cfg.Retrieval
	retrieverOpts := []retrieval.Option{
		retrieval.WithTopK(r.TopK),
		retrieval.WithPause(r.Pause.Duration()),
		retrieval.WithRetryPolicy(resilience.RetryPolicy{
			MaxAttempts:  r.Retry.MaxAttempts,
			InitialDelay: r.Retry.InitialDelay.Duration(),
			Multiplier:   r.Retry.Multiplier,
		}),
	}
	if in.metrics != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithMetrics(in.metrics))
	}
	retriever := retrieval.New(store, metered, metered, c, retrieverOpts...)

	engine, err := application.NewEngineWithOptions(
		application.WithPlanner(planner.NewLLMPlanner(planner.LLMPlannerConfig{
			Model:       metered,
			Instruction: compliance.Instruction,
		})),
		application.WithMaxIterations(cfg.Agent.MaxIterations),
		application.WithMiddleware(in.middleware),
		application.WithNotifier(in.notifier),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	analyzerCfg := application.AnalyzerConfig{
		Engine:    engine,
		Model:     metered,
		Retriever: retriever,
		Reports:   reports,
		Usage:     in.costs,
		Converter: converter,
		Timeout:   cfg.Agent.Timeout.Duration(),
	}
	if cfg.Output.StatsDir != "" {
		analyzerCfg.Stats = filesystem.NewStatsStore(cfg.Output.StatsDir)
	}
	if in.metrics != nil {
		analyzerCfg.Metrics = in.metrics
	}
	analyzer, err := application.NewAnalyzer(analyzerCfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Analyzing %d file(s)\n", len(paths))
	batch, batchErr := analyzer.AnalyzeBatch(ctx, paths)
	a.printBatch(batch, retriever.Stats())
	if in.reader != nil {
		a.printCounters(ctx, in)
	}
	if batchErr != nil {
		return fmt.Errorf("analysis interrupted: %w", batchErr)
	}
	return nil
}

func (a *App) printBatch(batch application.BatchResult, rs retrieval.Stats) {
	for _, f := range batch.Files {
		status := string(f.Outcome)
		if f.Err != nil {
			status += ": " + f.Err.Error()
		}
		fmt.Fprintf(a.stdout, "  %s\n    %s\n", f.Path, status)
		if f.ReportPath != "" {
			fmt.Fprintf(a.stdout, "    report: %s\n", f.ReportPath)
		}
	}
	fmt.Fprintf(a.stdout, "Completed: %d  Exhausted: %d  Failed: %d\n", batch.Completed, batch.Exhausted, batch.Failed)
	fmt.Fprintf(a.stdout, "Retrieval: %d searches, %d cache hits, %d retries\n", rs.Searches, rs.Hits, rs.Retries)
	if batch.StatsPath != "" {
		fmt.Fprintf(a.stdout, "Token statistics: %s\n", batch.StatsPath)
	}
}

func (a *App) printCounters(ctx context.Context, in *instrumentation) {
	counters, err := telemetry.Counters(context.WithoutCancel(ctx), in.reader)
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("metrics unavailable")
		return
	}
	fmt.Fprintln(a.stdout, "Metrics:")
	for _, c := range counters {
		fmt.Fprintf(a.stdout, "  %s = %d\n", c.Name, c.Value)
	}
}
