// Package upload stages submitted documents on a shared filesystem as
// {dir}/{job_id}.pdf, where the gateway writes them and workers read them.
package upload

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
)

// DefaultMaxSize is the largest accepted upload when WithMaxSize is not
// given.
const DefaultMaxSize int64 = 25 << 20

var pdfMagic = []byte("%PDF-")

// Option configures a Dir.
type Option func(*Dir)

// WithMaxSize sets the largest accepted upload in bytes.
func WithMaxSize(n int64) Option {
	return func(d *Dir) { d.maxSize = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dir) { d.logger = l }
}

// Dir is an upload staging directory. It is safe for concurrent use; each
// job writes its own file.
type Dir struct {
	root    string
	maxSize int64
	logger  *slog.Logger
}

// New returns a Dir rooted at root. The directory is created on first
// Save.
func New(root string, opts ...Option) *Dir {
	d := &Dir{root: root, maxSize: DefaultMaxSize, logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Root returns the staging directory.
func (d *Dir) Root() string { return d.root }

// Path returns where the document of jobID is staged.
func (d *Dir) Path(jobID id.JobID) string {
	return filepath.Join(d.root, jobID.String()+".pdf")
}

// Save validates and stores the document read from r. filename is the
// client-supplied name and is only checked for a .pdf extension. It
// returns the number of bytes written.
func (d *Dir) Save(jobID id.JobID, filename string, r io.Reader) (int64, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return 0, fmt.Errorf("%w: only PDF files are supported, got %q", pdfprocessor.ErrInvalidFile, filename)
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("upload: read %s: %w", filename, err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return 0, fmt.Errorf("%w: %q is not a PDF document", pdfprocessor.ErrInvalidFile, filename)
	}

	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return 0, fmt.Errorf("upload: create %s: %w", d.root, err)
	}
	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("upload: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	n, err := io.Copy(tmp, io.LimitReader(br, d.maxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("upload: write %s: %w", filename, err)
	}
	if n > d.maxSize {
		return 0, fmt.Errorf("%w: maximum size is %d MB", pdfprocessor.ErrFileTooLarge, d.maxSize>>20)
	}

	if err := os.Rename(tmp.Name(), d.Path(jobID)); err != nil {
		return 0, fmt.Errorf("upload: store %s: %w", filename, err)
	}

	d.logger.Debug("document staged",
		slog.String("job_id", jobID.String()),
		slog.String("filename", filename),
		slog.Int64("bytes", n),
	)
	return n, nil
}

// Remove deletes the staged document. A missing file is not an error.
func (d *Dir) Remove(jobID id.JobID) error {
	if err := os.Remove(d.Path(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: remove: %w", err)
	}
	return nil
}
