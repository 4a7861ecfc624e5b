// Package middleware provides composable middleware around a parser call.
//
// A [Middleware] wraps the [Handler] that runs the parser for one queue
// entry. Middleware are composed with [Chain] and applied right-to-left:
// the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job, parser, duration and outcome of each parse
//   - [Recover]: turns a parser panic into a Panic ParseError
//   - [Timeout]: bounds the parse with a deadline
//   - [Tracing]: wraps the parse in an OpenTelemetry span
//   - [Metrics]: records parse duration, outcome and page counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
