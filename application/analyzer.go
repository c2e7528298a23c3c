package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
	"github.com/felixgeelhaar/adcompliance/domain/analysis"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	"github.com/felixgeelhaar/adcompliance/infrastructure/input"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/filesystem"
	"github.com/felixgeelhaar/adcompliance/infrastructure/storage/memory"
	"github.com/felixgeelhaar/adcompliance/pack/compliance"
)

// DefaultTimeout bounds one file's run.
const DefaultTimeout = 300 * time.Second

// TaskFormat is the user message of a run, formatted with the image path.
const TaskFormat = "Analyse cette image publicitaire et vérifie sa conformité : %s"

// RunMetrics records run outcomes.
type RunMetrics interface {
	RecordRun(ctx context.Context, outcome string, d time.Duration)
}

// UsageSource hands out the usage of a finished run and the batch totals.
type UsageSource interface {
	FinishRun(runID string) map[string]analysis.StageUsage
	Stats() analysis.UsageStats
}

// AnalyzerConfig wires the batch analysis.
type AnalyzerConfig struct {
	Engine    *Engine
	Model     model.Model
	Retriever compliance.Retriever
	Reports   *filesystem.ReportStore

	// Optional collaborators.
	Stats     *filesystem.StatsStore
	Usage     UsageSource
	Metrics   RunMetrics
	Converter input.Converter

	Timeout time.Duration
	Now     func() time.Time
	NewID   func() string
}

// Analyzer analyzes files one after the other, each with a fresh state.
type Analyzer struct {
	cfg AnalyzerConfig
}

// FileResult is the outcome of one file.
type FileResult struct {
	Path       string
	RunID      string
	Outcome    analysis.Outcome
	Verdict    string
	ReportPath string
	Err        error
}

// BatchResult summarizes a batch.
type BatchResult struct {
	Files     []FileResult
	Completed int
	Exhausted int
	Failed    int
	StatsPath string
}

// NewAnalyzer validates the configuration.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	switch {
	case cfg.Engine == nil:
		return nil, errors.New("engine is required")
	case cfg.Model == nil:
		return nil, errors.New("model is required")
	case cfg.Retriever == nil:
		return nil, errors.New("retriever is required")
	case cfg.Reports == nil:
		return nil, errors.New("report store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Analyzer{cfg: cfg}, nil
}

// AnalyzeBatch analyzes every path in order. A failing file is logged and
// the batch moves on; cancellation of ctx stops the batch after the current
// file and is returned. Usage statistics are saved when a stats store is set.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, paths []string) (BatchResult, error) {
	var batch BatchResult
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			logging.Warn().
				Add(logging.Count("remaining", len(paths)-i)).
				Add(logging.ErrorField(err)).
				Msg("batch interrupted")
			return batch, a.finishBatch(&batch, err)
		}

		res := a.AnalyzeFile(ctx, path)
		batch.Files = append(batch.Files, res)
		switch res.Outcome {
		case analysis.OutcomeCompleted:
			batch.Completed++
		case analysis.OutcomeExhausted:
			batch.Exhausted++
		default:
			batch.Failed++
		}
		if res.Err != nil {
			logging.Error().
				Add(logging.File(path)).
				Add(logging.Str("outcome", string(res.Outcome))).
				Add(logging.ErrorField(res.Err)).
				Msg("file analysis failed")
		}
	}

	var interrupted error
	if err := ctx.Err(); err != nil {
		interrupted = err
	}
	logging.Info().
		Add(logging.Count("files", len(batch.Files))).
		Add(logging.Count("completed", batch.Completed)).
		Add(logging.Count("exhausted", batch.Exhausted)).
		Add(logging.Count("failed", batch.Failed)).
		Msg("batch finished")
	return batch, a.finishBatch(&batch, interrupted)
}

func (a *Analyzer) finishBatch(batch *BatchResult, interrupted error) error {
	if a.cfg.Stats == nil || a.cfg.Usage == nil {
		return interrupted
	}
	path, err := a.cfg.Stats.Save(a.cfg.Usage.Stats(), a.cfg.Now())
	if err != nil {
		return errors.Join(interrupted, fmt.Errorf("failed to save usage stats: %w", err))
	}
	batch.StatsPath = path
	return interrupted
}

// AnalyzeFile runs the loop over one file and writes its report. The report
// is written for every outcome, failures included, as long as the file got
// far enough to have a state.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) FileResult {
	runID := a.cfg.NewID()
	res := FileResult{Path: path, RunID: runID, Outcome: analysis.OutcomeFailed}
	state := analysis.NewState(runID, path)

	logging.Info().
		Add(logging.RunID(runID)).
		Add(logging.File(path)).
		Msg("analyzing file")

	start := time.Now()
	summary := a.run(ctx, state)
	res.Outcome = summary.Outcome
	res.Err = summary.Err
	res.Verdict = summary.Answer

	if a.cfg.Metrics != nil {
		a.cfg.Metrics.RecordRun(ctx, string(summary.Outcome), time.Since(start))
	}

	at := a.cfg.Now()
	report := analysis.BuildReport(state, summary, at)
	if a.cfg.Usage != nil {
		report.Usage = a.cfg.Usage.FinishRun(runID)
	}

	image := state.ImagePath()
	if input.CheckReadable(image) != nil {
		image = ""
	}
	// The report records cancellation too, so it is saved past ctx.
	saved, err := a.cfg.Reports.Save(context.WithoutCancel(ctx), report, state.Stem(), image, at)
	if err != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("failed to save report: %w", err))
		return res
	}
	res.ReportPath = saved.Report

	logging.Info().
		Add(logging.RunID(runID)).
		Add(logging.File(saved.Report)).
		Add(logging.Str("outcome", string(summary.Outcome))).
		Add(logging.Duration(time.Since(start))).
		Msg("report saved")
	return res
}

func (a *Analyzer) run(ctx context.Context, state *analysis.State) analysis.RunSummary {
	if input.IsPDF(state.SourcePath()) {
		if a.cfg.Converter == nil {
			return analysis.RunSummary{
				Outcome: analysis.OutcomeFailed,
				Err:     fmt.Errorf("%w: no PDF converter configured", input.ErrConversionFailed),
			}
		}
		converted, err := a.cfg.Converter.Convert(ctx, state.SourcePath())
		if err != nil {
			return analysis.RunSummary{Outcome: analysis.OutcomeFailed, Err: err}
		}
		state.SetConvertedPath(converted)
	}
	if err := input.CheckReadable(state.ImagePath()); err != nil {
		return analysis.RunSummary{Outcome: analysis.OutcomeFailed, Err: err}
	}

	p, err := compliance.New(compliance.Config{
		Model:     a.cfg.Model,
		Retriever: a.cfg.Retriever,
		State:     state,
		Now:       a.cfg.Now,
	})
	if err != nil {
		return analysis.RunSummary{Outcome: analysis.OutcomeFailed, Err: err}
	}
	registry := memory.NewToolRegistry()
	if err := p.Install(registry); err != nil {
		return analysis.RunSummary{Outcome: analysis.OutcomeFailed, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	run, err := a.cfg.Engine.Run(runCtx, RunRequest{
		RunID:    state.RunID(),
		File:     state.SourcePath(),
		Task:     fmt.Sprintf(TaskFormat, state.ImagePath()),
		Registry: registry,
	})
	return Summarize(run, err)
}

// Summarize maps a finished run to its report summary. A run that hit the
// wall-clock ceiling is incomplete like one that spent its iteration budget,
// so both map to OutcomeExhausted; the report error tells them apart.
func Summarize(run *agent.Run, err error) analysis.RunSummary {
	if run == nil {
		return analysis.RunSummary{Outcome: analysis.OutcomeFailed, Err: err}
	}
	summary := analysis.RunSummary{Iterations: run.Iterations, Answer: run.Answer, Err: err}
	switch {
	case run.Status == agent.RunStatusCompleted:
		summary.Outcome = analysis.OutcomeCompleted
	case run.Status == agent.RunStatusExhausted, errors.Is(err, agent.ErrTimeout):
		summary.Outcome = analysis.OutcomeExhausted
	default:
		summary.Outcome = analysis.OutcomeFailed
	}
	return summary
}
