// Package observability provides an OpenTelemetry metrics extension that
// records system-wide job lifecycle counters: submissions, completions,
// failures, dead-letters and deletions.
//
// For per-parse tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
