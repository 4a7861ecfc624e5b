package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
)

// tracerName is the instrumentation scope name for pdf-processor tracing.
const tracerName = "github.com/alejochang/pdf-processor"

// Tracing returns middleware that wraps a parser call in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used.
//
// Span attributes: pdfprocessor.job.id, pdfprocessor.entry.id,
// pdfprocessor.parser, pdfprocessor.deliveries and, on success,
// pdfprocessor.pages.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, e *queue.Entry, next Handler) (*parser.Document, error) {
		ctx, span := tracer.Start(ctx, "pdfprocessor.parse",
			trace.WithAttributes(
				attribute.String("pdfprocessor.job.id", e.JobID.String()),
				attribute.String("pdfprocessor.entry.id", e.ID),
				attribute.String("pdfprocessor.parser", string(e.Parser)),
				attribute.Int64("pdfprocessor.deliveries", e.Deliveries),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		doc, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("pdfprocessor.pages", len(doc.Pages)))
			span.SetStatus(codes.Ok, "")
		}

		return doc, err
	}
}
