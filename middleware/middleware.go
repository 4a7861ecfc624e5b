// Package middleware provides composable middleware around a parser call.
// Middleware wraps the call synchronously and can change its outcome
// (recover from panics, bound its duration, log, trace, count).
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
)

// Handler is the terminal function that runs the parser.
type Handler func(ctx context.Context) (*parser.Document, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the entry being processed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, e *queue.Entry, next Handler) (*parser.Document, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, e *queue.Entry, next Handler) (*parser.Document, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (*parser.Document, error) {
				return mw(ctx, e, prev)
			}
		}
		return h(ctx)
	}
}

// Default returns the chain the worker uses when none is configured:
// Logging → Recover → Timeout(timeout).
func Default(logger *slog.Logger, timeout time.Duration) Middleware {
	return Chain(Logging(logger), Recover(logger), Timeout(timeout, logger))
}
