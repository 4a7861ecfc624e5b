package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
)

// Logging returns middleware that logs parse start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *queue.Entry, next Handler) (*parser.Document, error) {
		logger.Info("parse started",
			slog.String("job_id", e.JobID.String()),
			slog.String("entry_id", e.ID),
			slog.String("parser", string(e.Parser)),
			slog.Int64("deliveries", e.Deliveries),
		)

		start := time.Now()
		doc, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("parse failed",
				slog.String("job_id", e.JobID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("parse completed",
				slog.String("job_id", e.JobID.String()),
				slog.Duration("elapsed", elapsed),
				slog.Int("pages", len(doc.Pages)),
			)
		}

		return doc, err
	}
}
