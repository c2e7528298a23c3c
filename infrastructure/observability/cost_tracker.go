package observability

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/analysis"
	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/domain/model"
	modelinfra "github.com/felixgeelhaar/adcompliance/infrastructure/model"
)

// CostTracker accumulates token usage and USD cost per run and stage, and
// for the whole batch. It is both a model.UsageRecorder and an
// event.Observer; the observer side only tracks the batch date range.
type CostTracker struct {
	pricing modelinfra.Pricing
	now     func() time.Time

	mu    sync.Mutex
	runs  map[string]map[string]analysis.StageUsage
	stats analysis.UsageStats
}

// CostTrackerOption configures a CostTracker.
type CostTrackerOption func(*CostTracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CostTrackerOption {
	return func(c *CostTracker) {
		c.now = now
	}
}

// NewCostTracker creates a tracker pricing calls with pricing.
func NewCostTracker(pricing modelinfra.Pricing, opts ...CostTrackerOption) *CostTracker {
	if pricing == nil {
		pricing = modelinfra.DefaultPricing()
	}
	c := &CostTracker{
		pricing: pricing,
		now:     time.Now,
		runs:    make(map[string]map[string]analysis.StageUsage),
		stats:   analysis.UsageStats{Models: make(map[string]analysis.ModelUsage)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordUsage implements model.UsageRecorder.
func (c *CostTracker) RecordUsage(_ context.Context, rec model.UsageRecord) {
	stage := rec.Stage
	if stage == "" {
		stage = event.StageOther
	}
	cost := c.pricing.Cost(rec.Model, rec.Usage, rec.Embedding)

	c.mu.Lock()
	defer c.mu.Unlock()

	stages, ok := c.runs[rec.RunID]
	if !ok {
		stages = make(map[string]analysis.StageUsage)
		c.runs[rec.RunID] = stages
	}
	su := stages[stage]
	mu := c.stats.Models[rec.Model]
	if rec.Embedding {
		su.EmbeddingTokens += rec.Usage.PromptTokens
		mu.EmbeddingTokens += rec.Usage.PromptTokens
		c.stats.TotalEmbeddingTokens += rec.Usage.PromptTokens
		c.stats.TotalTokens += rec.Usage.PromptTokens
	} else {
		su.PromptTokens += rec.Usage.PromptTokens
		su.CompletionTokens += rec.Usage.CompletionTokens
		mu.PromptTokens += rec.Usage.PromptTokens
		mu.CompletionTokens += rec.Usage.CompletionTokens
		c.stats.TotalPromptTokens += rec.Usage.PromptTokens
		c.stats.TotalCompletionTokens += rec.Usage.CompletionTokens
		c.stats.TotalTokens += rec.Usage.PromptTokens + rec.Usage.CompletionTokens
	}
	su.CostUSD += cost
	su.Calls++
	mu.CostUSD += cost
	mu.Calls++
	stages[stage] = su
	c.stats.Models[rec.Model] = mu
	c.stats.TotalCostUSD += cost
	c.touch()
}

// StageEnter implements event.Observer.
func (c *CostTracker) StageEnter(context.Context, event.Stage) error {
	c.mu.Lock()
	c.touch()
	c.mu.Unlock()
	return nil
}

// StageExit implements event.Observer.
func (c *CostTracker) StageExit(context.Context, event.Stage, event.StageResult) error {
	c.mu.Lock()
	c.touch()
	c.mu.Unlock()
	return nil
}

// touch widens the date range; callers hold mu.
func (c *CostTracker) touch() {
	now := c.now()
	if c.stats.StartDate.IsZero() {
		c.stats.StartDate = now
	}
	c.stats.EndDate = now
}

// RunUsage returns a copy of the per-stage usage of a run.
func (c *CostTracker) RunUsage(runID string) map[string]analysis.StageUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]analysis.StageUsage, len(c.runs[runID]))
	for k, v := range c.runs[runID] {
		out[k] = v
	}
	return out
}

// FinishRun counts the run as one analyzed file and returns its per-stage
// usage, forgetting the run afterwards.
func (c *CostTracker) FinishRun(runID string) map[string]analysis.StageUsage {
	out := c.RunUsage(runID)
	c.mu.Lock()
	delete(c.runs, runID)
	c.stats.TotalFiles++
	c.mu.Unlock()
	return out
}

// Stats returns a copy of the batch totals.
func (c *CostTracker) Stats() analysis.UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	out.Models = make(map[string]analysis.ModelUsage, len(c.stats.Models))
	for k, v := range c.stats.Models {
		out.Models[k] = v
	}
	return out
}
