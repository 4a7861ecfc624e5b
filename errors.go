package pdfprocessor

import "errors"

var (
	// Infrastructure errors. Backends wrap the underlying client error with
	// one of these so callers can tell an outage from a domain condition.
	ErrStoreUnavailable = errors.New("pdfprocessor: store unavailable")
	ErrQueueUnavailable = errors.New("pdfprocessor: queue unavailable")

	// Not found errors.
	ErrJobNotFound    = errors.New("pdfprocessor: job not found")
	ErrResultNotFound = errors.New("pdfprocessor: result not found or expired")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("pdfprocessor: job already exists")

	// State errors.
	ErrInvalidTransition = errors.New("pdfprocessor: invalid status transition")
	ErrResultNotReady    = errors.New("pdfprocessor: result not ready")
	ErrJobFailed         = errors.New("pdfprocessor: job failed")

	// Input errors.
	ErrInvalidParser = errors.New("pdfprocessor: invalid parser")
	ErrInvalidFile   = errors.New("pdfprocessor: invalid file")
	ErrFileTooLarge  = errors.New("pdfprocessor: file too large")
	ErrInvalidConfig = errors.New("pdfprocessor: invalid config")
)
