// Package remote calls an HTTP parser service for the AI and OCR parser
// variants. The service receives the PDF as a multipart upload together
// with the requested variant and answers with either structured pages or
// raw text using "---Page N---" markers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/parser"
)

// maxErrorBody caps how much of a failed response ends up in the job error.
const maxErrorBody = 512

// Option configures a Parser.
type Option func(*Parser)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Parser) { p.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// Parser implements parser.Parser by posting files to a parser service.
type Parser struct {
	url    string
	kind   job.ParserKind
	client *http.Client
	logger *slog.Logger
}

var _ parser.Parser = (*Parser)(nil)

// New creates a Parser that asks the service at url for the given variant.
func New(url string, kind job.ParserKind, opts ...Option) *Parser {
	p := &Parser{
		url:    url,
		kind:   kind,
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type response struct {
	Pages []struct {
		Page    int    `json:"page"`
		Content string `json:"content"`
	} `json:"pages"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

// Parse implements parser.Parser.
func (p *Parser) Parse(ctx context.Context, path string) (*parser.Document, error) {
	body, contentType, err := p.form(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return nil, parser.NewError(parser.CategoryInternal, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, parser.NewError(parser.CategoryTimeout, ctxErr)
		}
		return nil, parser.Errorf(parser.CategoryProvider, "%s request: %v", p.kind, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("parser service responded",
		slog.String("parser", string(p.kind)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, parser.Errorf(parser.CategoryInputTooLarge, "%s: %s", p.kind, readSnippet(resp.Body))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, parser.Errorf(parser.CategoryInvalidInput, "%s: %s", p.kind, readSnippet(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return nil, parser.Errorf(parser.CategoryProvider, "%s returned status %d: %s", p.kind, resp.StatusCode, readSnippet(resp.Body))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, parser.Errorf(parser.CategoryProvider, "%s: decode response: %v", p.kind, err)
	}

	if len(out.Pages) == 0 {
		pages, summary := parser.SplitMarkedPages(out.Text)
		if out.Summary != "" {
			summary = out.Summary
		}
		return &parser.Document{Pages: pages, Summary: summary}, nil
	}

	doc := &parser.Document{Summary: strings.TrimSpace(out.Summary)}
	doc.Pages = make([]pdfprocessor.Page, len(out.Pages))
	for i, pg := range out.Pages {
		n := pg.Page
		if n == 0 {
			n = i + 1
		}
		doc.Pages[i] = pdfprocessor.Page{Number: n, Text: pg.Content}
	}
	return doc, nil
}

func (p *Parser) form(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", parser.Errorf(parser.CategoryFileNotFound, "PDF file not found: %s", path)
		}
		return nil, "", parser.NewError(parser.CategoryInvalidInput, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("parser", string(p.kind)); err != nil {
		return nil, "", parser.NewError(parser.CategoryInternal, err)
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", parser.NewError(parser.CategoryInternal, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", parser.NewError(parser.CategoryInternal, fmt.Errorf("read %s: %w", path, err))
	}
	if err := w.Close(); err != nil {
		return nil, "", parser.NewError(parser.CategoryInternal, err)
	}
	return &buf, w.FormDataContentType(), nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody)) //nolint:errcheck // best effort
	return strings.TrimSpace(string(b))
}
