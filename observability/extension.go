package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alejochang/pdf-processor/ext"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
)

const meterName = "github.com/alejochang/pdf-processor/observability"

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.JobSubmitted    = (*MetricsExtension)(nil)
	_ ext.JobCompleted    = (*MetricsExtension)(nil)
	_ ext.JobFailed       = (*MetricsExtension)(nil)
	_ ext.JobDeadLettered = (*MetricsExtension)(nil)
	_ ext.JobDeleted      = (*MetricsExtension)(nil)
)

// MetricsExtension records job lifecycle counters. Register it on an
// ext.Registry shared by the gateway and the workers.
//
// Instruments (all Int64Counter, tagged with parser where known):
//   - pdfprocessor.job.submitted
//   - pdfprocessor.job.completed
//   - pdfprocessor.job.failed
//   - pdfprocessor.job.dead_lettered
//   - pdfprocessor.job.deleted
//   - pdfprocessor.job.pages
type MetricsExtension struct {
	JobSubmitted    metric.Int64Counter
	JobCompleted    metric.Int64Counter
	JobFailed       metric.Int64Counter
	JobDeadLettered metric.Int64Counter
	JobDeleted      metric.Int64Counter
	Pages           metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc, unit string) metric.Int64Counter {
		// On error the API returns a noop instrument.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return c
	}
	return &MetricsExtension{
		JobSubmitted:    counter("pdfprocessor.job.submitted", "Jobs accepted by the gateway", "{job}"),
		JobCompleted:    counter("pdfprocessor.job.completed", "Jobs that reached COMPLETED", "{job}"),
		JobFailed:       counter("pdfprocessor.job.failed", "Jobs that reached FAILED", "{job}"),
		JobDeadLettered: counter("pdfprocessor.job.dead_lettered", "Jobs failed by recovery after too many deliveries", "{job}"),
		JobDeleted:      counter("pdfprocessor.job.deleted", "Jobs removed through the gateway", "{job}"),
		Pages:           counter("pdfprocessor.job.pages", "Pages in completed results", "{page}"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func parserAttr(r *job.Record) metric.AddOption {
	return metric.WithAttributes(attribute.String("parser", string(r.Parser)))
}

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, r *job.Record) error {
	m.JobSubmitted.Add(ctx, 1, parserAttr(r))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, r *job.Record, res *result.Result, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, parserAttr(r))
	m.Pages.Add(ctx, int64(len(res.Pages)), parserAttr(r))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, r *job.Record, _ string) error {
	m.JobFailed.Add(ctx, 1, parserAttr(r))
	return nil
}

// OnJobDeadLettered implements ext.JobDeadLettered.
func (m *MetricsExtension) OnJobDeadLettered(ctx context.Context, r *job.Record, _ *queue.Entry, _ string) error {
	m.JobDeadLettered.Add(ctx, 1, parserAttr(r))
	return nil
}

// OnJobDeleted implements ext.JobDeleted.
func (m *MetricsExtension) OnJobDeleted(ctx context.Context, _ id.JobID) error {
	m.JobDeleted.Add(ctx, 1)
	return nil
}
