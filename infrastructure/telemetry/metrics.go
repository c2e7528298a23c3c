// Package telemetry provides OpenTelemetry metrics for stages, runs and
// legislation retrieval.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/adcompliance/domain/event"
)

// MetricsObserver records stage, run and retrieval metrics. It implements
// event.Observer and retrieval.Metrics.
type MetricsObserver struct {
	meter metric.Meter

	// Counters
	stageExecutions metric.Int64Counter
	errors          metric.Int64Counter
	runs            metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	retries         metric.Int64Counter

	// Histograms
	stageDuration     metric.Float64Histogram
	runDuration       metric.Float64Histogram
	retrievalDuration metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	activeStages metric.Int64UpDownCounter
}

// MetricsConfig configures the observer.
type MetricsConfig struct {
	// MeterName is the name of the meter.
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider is the meter provider. If nil, the global provider is used.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/adcompliance",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsObserver creates the observer and its instruments.
func NewMetricsObserver(config MetricsConfig) (*MetricsObserver, error) {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	mo := &MetricsObserver{
		meter: provider.Meter(config.MeterName, metric.WithInstrumentationVersion(config.MeterVersion)),
	}
	if err := mo.initInstruments(); err != nil {
		return nil, err
	}
	return mo, nil
}

func (mo *MetricsObserver) initInstruments() error {
	var err error

	if mo.stageExecutions, err = mo.meter.Int64Counter(
		"adcompliance.stage.executions",
		metric.WithDescription("Number of completed stages"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return err
	}
	if mo.errors, err = mo.meter.Int64Counter(
		"adcompliance.errors",
		metric.WithDescription("Number of failed stages and retrievals"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if mo.runs, err = mo.meter.Int64Counter(
		"adcompliance.runs",
		metric.WithDescription("Number of analyzed files by outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return err
	}
	if mo.cacheHits, err = mo.meter.Int64Counter(
		"adcompliance.retrieval.cache.hits",
		metric.WithDescription("Number of retrieval cache hits"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return err
	}
	if mo.cacheMisses, err = mo.meter.Int64Counter(
		"adcompliance.retrieval.cache.misses",
		metric.WithDescription("Number of retrieval cache misses"),
		metric.WithUnit("{miss}"),
	); err != nil {
		return err
	}
	if mo.retries, err = mo.meter.Int64Counter(
		"adcompliance.retrieval.retries",
		metric.WithDescription("Number of retried embed and search attempts"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return err
	}

	if mo.stageDuration, err = mo.meter.Float64Histogram(
		"adcompliance.stage.duration",
		metric.WithDescription("Stage duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}
	if mo.runDuration, err = mo.meter.Float64Histogram(
		"adcompliance.run.duration",
		metric.WithDescription("Per-file analysis duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}
	if mo.retrievalDuration, err = mo.meter.Float64Histogram(
		"adcompliance.retrieval.duration",
		metric.WithDescription("Legislation search duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}

	mo.activeStages, err = mo.meter.Int64UpDownCounter(
		"adcompliance.stage.active",
		metric.WithDescription("Number of stages in progress"),
		metric.WithUnit("{stage}"),
	)
	return err
}

// StageEnter implements event.Observer.
func (mo *MetricsObserver) StageEnter(ctx context.Context, stage event.Stage) error {
	mo.activeStages.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage.Name)))
	return nil
}

// StageExit implements event.Observer.
func (mo *MetricsObserver) StageExit(ctx context.Context, stage event.Stage, result event.StageResult) error {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage.Name),
		attribute.Bool("success", !result.Failed()),
	)
	mo.activeStages.Add(ctx, -1, metric.WithAttributes(attribute.String("stage", stage.Name)))
	mo.stageExecutions.Add(ctx, 1, attrs)
	mo.stageDuration.Record(ctx, float64(result.Duration.Milliseconds()), attrs)
	if result.Failed() {
		mo.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "stage")))
	}
	return nil
}

// RecordRetrieval implements retrieval.Metrics.
func (mo *MetricsObserver) RecordRetrieval(ctx context.Context, cached bool, retries int, d time.Duration, err error) {
	if cached {
		mo.cacheHits.Add(ctx, 1)
	} else {
		mo.cacheMisses.Add(ctx, 1)
	}
	if retries > 0 {
		mo.retries.Add(ctx, int64(retries))
	}
	mo.retrievalDuration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.Bool("cached", cached)))
	if err != nil {
		mo.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "retrieval")))
	}
}

// RecordRun records one analyzed file.
func (mo *MetricsObserver) RecordRun(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	mo.runs.Add(ctx, 1, attrs)
	mo.runDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
