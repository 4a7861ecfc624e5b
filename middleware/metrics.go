package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
)

// meterName is the instrumentation scope name for pdf-processor metrics.
const meterName = "github.com/alejochang/pdf-processor"

// Metrics returns middleware that records per-parse metrics using the
// global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - pdfprocessor.parse.duration (Float64Histogram): parse time in seconds
//   - pdfprocessor.parse.executions (Int64Counter): total parses
//   - pdfprocessor.parse.pages (Int64Counter): pages extracted
//
// Duration and executions carry parser, status ("ok" or "error") and, on
// error, category.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"pdfprocessor.parse.duration",
		metric.WithDescription("Duration of parser calls in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"pdfprocessor.parse.executions",
		metric.WithDescription("Total number of parser calls"),
		metric.WithUnit("{execution}"),
	)
	pages, _ := meter.Int64Counter(
		"pdfprocessor.parse.pages",
		metric.WithDescription("Total number of pages extracted"),
		metric.WithUnit("{page}"),
	)

	return func(ctx context.Context, e *queue.Entry, next Handler) (*parser.Document, error) {
		start := time.Now()
		doc, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		kv := []attribute.KeyValue{attribute.String("parser", string(e.Parser))}
		if err != nil {
			category := parser.CategoryInternal
			var pe *parser.ParseError
			if errors.As(err, &pe) {
				category = pe.Category
			}
			kv = append(kv, attribute.String("status", "error"), attribute.String("category", string(category)))
		} else {
			kv = append(kv, attribute.String("status", "ok"))
			pages.Add(ctx, int64(len(doc.Pages)), metric.WithAttributes(kv[0]))
		}

		attrs := metric.WithAttributes(kv...)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return doc, err
	}
}
