package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// NewManualProvider returns a meter provider whose instruments are read on
// demand through the returned reader.
func NewManualProvider() (*metric.MeterProvider, *metric.ManualReader) {
	reader := metric.NewManualReader()
	return metric.NewMeterProvider(metric.WithReader(reader)), reader
}

// Counter is the total of one integer sum instrument.
type Counter struct {
	Name  string
	Value int64
}

// Counters collects reader and returns the totals of every int64 sum,
// sorted by name.
func Counters(ctx context.Context, reader metric.Reader) ([]Counter, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	var out []Counter
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			out = append(out, Counter{Name: m.Name, Value: total})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
