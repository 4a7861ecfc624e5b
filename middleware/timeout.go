package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
)

// Timeout returns middleware that bounds a parser call. A non-positive d
// disables it. A handler that overruns and returns the context error is
// reported as a CategoryTimeout ParseError.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *queue.Entry, next Handler) (*parser.Document, error) {
		if d <= 0 {
			return next(ctx)
		}
		logger.Debug("parse timeout set",
			slog.String("job_id", e.JobID.String()),
			slog.Duration("timeout", d),
		)

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		doc, err := next(ctx)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			var pe *parser.ParseError
			if !errors.As(err, &pe) {
				err = parser.Errorf(parser.CategoryTimeout, "parser exceeded %s", d)
			}
		}
		return doc, err
	}
}
