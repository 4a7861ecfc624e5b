package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
)

// Recover returns middleware that recovers from panics in the handler chain.
// A panic becomes a ParseError with CategoryPanic and is logged with a
// stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *queue.Entry, next Handler) (doc *parser.Document, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("parser panicked",
					slog.String("job_id", e.JobID.String()),
					slog.String("parser", string(e.Parser)),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				doc = nil
				retErr = parser.Errorf(parser.CategoryPanic, "%v", r)
			}
		}()
		return next(ctx)
	}
}
