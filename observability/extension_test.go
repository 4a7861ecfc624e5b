package observability_test

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/observability"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestRecord() *job.Record {
	return job.NewRecord(id.NewJobID(), "invoice.pdf", job.ParserMistral)
}

// counterValue sums all data points of the named counter.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Hooks(t *testing.T) {
	ctx := context.Background()
	rec := newTestRecord()

	tests := []struct {
		name   string
		fire   func(e *observability.MetricsExtension) error
		metric string
		want   int64
	}{
		{
			name:   "submitted",
			fire:   func(e *observability.MetricsExtension) error { return e.OnJobSubmitted(ctx, rec) },
			metric: "pdfprocessor.job.submitted",
			want:   1,
		},
		{
			name: "completed",
			fire: func(e *observability.MetricsExtension) error {
				return e.OnJobCompleted(ctx, rec, result.Completed(rec, nil, "", time.Second), time.Second)
			},
			metric: "pdfprocessor.job.completed",
			want:   1,
		},
		{
			name: "pages",
			fire: func(e *observability.MetricsExtension) error {
				pages := []pdfprocessor.Page{{Number: 1}, {Number: 2}, {Number: 3}}
				return e.OnJobCompleted(ctx, rec, result.Completed(rec, pages, "", time.Second), time.Second)
			},
			metric: "pdfprocessor.job.pages",
			want:   3,
		},
		{
			name:   "failed",
			fire:   func(e *observability.MetricsExtension) error { return e.OnJobFailed(ctx, rec, "Timeout") },
			metric: "pdfprocessor.job.failed",
			want:   1,
		},
		{
			name: "dead lettered",
			fire: func(e *observability.MetricsExtension) error {
				return e.OnJobDeadLettered(ctx, rec, &queue.Entry{ID: "1-0"}, "MaxDeliveriesExceeded")
			},
			metric: "pdfprocessor.job.dead_lettered",
			want:   1,
		},
		{
			name:   "deleted",
			fire:   func(e *observability.MetricsExtension) error { return e.OnJobDeleted(ctx, rec.ID) },
			metric: "pdfprocessor.job.deleted",
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reader := newTestExtension()
			if err := tt.fire(e); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := counterValue(t, reader, tt.metric); got != tt.want {
				t.Errorf("%s = %d, want %d", tt.metric, got, tt.want)
			}
		})
	}
}

func TestMetricsExtension_GlobalProviderIsNoop(t *testing.T) {
	e := observability.NewMetricsExtension()
	if err := e.OnJobSubmitted(context.Background(), newTestRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
