// Package parser defines the capability that turns a stored document into
// pages and an optional summary. How a document is parsed is up to the
// implementation; the worker only sees Parse and ParseError.
package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/job"
)

// Document is the output of a successful parse.
type Document struct {
	Pages   []pdfprocessor.Page
	Summary string
}

// Parser extracts a Document from the file at path.
type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
}

// Func adapts an ordinary function to the Parser interface.
type Func func(ctx context.Context, path string) (*Document, error)

// Parse calls f(ctx, path).
func (f Func) Parse(ctx context.Context, path string) (*Document, error) { return f(ctx, path) }

// Category classifies a parse failure. It prefixes the error message that
// ends up on the job record.
type Category string

const (
	CategoryFileNotFound  Category = "FileNotFound"
	CategoryInvalidInput  Category = "InvalidInput"
	CategoryInputTooLarge Category = "InputTooLarge"
	CategoryProvider      Category = "ProviderError"
	CategoryTimeout       Category = "Timeout"
	CategoryUnsupported   Category = "UnsupportedParser"
	CategoryPanic         Category = "Panic"
	CategoryInternal      Category = "InternalError"
)

// ParseError is returned by parsers for any failure.
type ParseError struct {
	Category Category
	Err      error
}

// NewError wraps err under category.
func NewError(category Category, err error) *ParseError {
	return &ParseError{Category: category, Err: err}
}

// Errorf builds a ParseError with a formatted message.
func Errorf(category Category, format string, args ...any) *ParseError {
	return &ParseError{Category: category, Err: fmt.Errorf(format, args...)}
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Describe renders err as "<Category>: <message>". Errors that are not a
// ParseError are categorized by their context cause or as InternalError.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CategoryTimeout, err).Error()
	}
	return NewError(CategoryInternal, err).Error()
}

// Registry maps parser variants to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	parsers map[job.ParserKind]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[job.ParserKind]Parser)}
}

// Register binds kind to p, replacing any previous binding.
func (r *Registry) Register(kind job.ParserKind, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[kind] = p
}

// Get returns the parser bound to kind.
func (r *Registry) Get(kind job.ParserKind) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[kind]
	return p, ok
}

// Kinds returns the registered variants.
func (r *Registry) Kinds() []job.ParserKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]job.ParserKind, 0, len(r.parsers))
	for k := range r.parsers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Parse looks up kind and runs it. An unbound kind fails with
// CategoryUnsupported.
func (r *Registry) Parse(ctx context.Context, kind job.ParserKind, path string) (*Document, error) {
	p, ok := r.Get(kind)
	if !ok {
		return nil, Errorf(CategoryUnsupported, "no parser registered for %q", kind)
	}
	return p.Parse(ctx, path)
}
