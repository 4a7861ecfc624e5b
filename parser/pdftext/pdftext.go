// Package pdftext extracts the text layer of a PDF with poppler's
// pdftotext. Pages are split on the form feed pdftotext emits between
// pages. Scanned documents without a text layer yield empty pages; use an
// OCR parser for those.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/parser"
)

// SummaryFailed is the summary stored when the summarizer errors.
const SummaryFailed = "Summary generation failed."

// maxSummaryInput caps the text handed to the summarizer.
const maxSummaryInput = 50000

// Runner lets tests stub the external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Summarizer produces a short summary of extracted text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Option configures a Parser.
type Option func(*Parser)

// WithBinary sets the pdftotext binary name or path.
func WithBinary(path string) Option {
	return func(p *Parser) { p.binary = path }
}

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(p *Parser) { p.runner = r }
}

// WithSummarizer enables summaries.
func WithSummarizer(s Summarizer) Option {
	return func(p *Parser) { p.summarizer = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// Parser implements parser.Parser with pdftotext.
type Parser struct {
	binary     string
	runner     Runner
	summarizer Summarizer
	logger     *slog.Logger
}

var _ parser.Parser = (*Parser)(nil)

// New creates a pdftotext parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		binary: "pdftotext",
		runner: execRunner{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse implements parser.Parser.
func (p *Parser) Parse(ctx context.Context, path string) (*parser.Document, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, parser.Errorf(parser.CategoryFileNotFound, "PDF file not found: %s", path)
		}
		return nil, parser.NewError(parser.CategoryInvalidInput, err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, parser.NewError(parser.CategoryTimeout, ctxErr)
		}
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = err.Error()
		}
		return nil, parser.Errorf(parser.CategoryInvalidInput, "pdftotext: %s", msg)
	}

	pages := SplitPages(string(out))
	doc := &parser.Document{Pages: pages}

	if p.summarizer != nil {
		doc.Summary = p.summarize(ctx, pages)
	}
	return doc, nil
}

func (p *Parser) summarize(ctx context.Context, pages []pdfprocessor.Page) string {
	texts := make([]string, len(pages))
	for i, pg := range pages {
		texts[i] = pg.Text
	}
	text := strings.Join(texts, "\n\n")
	if len(text) > maxSummaryInput {
		text = text[:maxSummaryInput]
	}

	summary, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		p.logger.Error("summary generation failed", slog.String("error", err.Error()))
		return SummaryFailed
	}
	return strings.TrimSpace(summary)
}

// SplitPages turns pdftotext output into numbered pages. pdftotext ends
// every page, including the last, with a form feed.
func SplitPages(text string) []pdfprocessor.Page {
	parts := strings.Split(text, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]pdfprocessor.Page, len(parts))
	for i, part := range parts {
		pages[i] = pdfprocessor.Page{Number: i + 1, Text: strings.TrimSpace(part)}
	}
	return pages
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Debug("exec failed",
			slog.String("cmd", name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return out.Bytes(), errb.Bytes(), fmt.Errorf("run %s: %w", name, err)
	}
	return out.Bytes(), errb.Bytes(), nil
}
