// Package gateway is the submission side of the processor. It stages
// uploaded documents, records jobs, enqueues them for the workers, and
// answers status and result queries.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/ext"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
	"github.com/alejochang/pdf-processor/store"
	"github.com/alejochang/pdf-processor/upload"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExtensions notifies r of submissions and deletions.
func WithExtensions(r *ext.Registry) Option {
	return func(s *Service) { s.ext = r }
}

// WithParsers restricts the parser variants Submit accepts. By default
// every known variant is accepted.
func WithParsers(kinds ...job.ParserKind) Option {
	return func(s *Service) { s.parsers = kinds }
}

// Service implements the gateway operations over a store and an upload
// directory.
type Service struct {
	store   store.Store
	uploads *upload.Dir
	parsers []job.ParserKind
	ext     *ext.Registry
	logger  *slog.Logger
}

// New creates a Service.
func New(s store.Store, uploads *upload.Dir, opts ...Option) *Service {
	svc := &Service{
		store:   s,
		uploads: uploads,
		parsers: job.ParserKinds(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// Submit stages the document read from r, records a PENDING job and
// enqueues it. On any failure after staging, the file and record are
// removed again so no job is left without a queue entry.
func (s *Service) Submit(ctx context.Context, filename, parserName string, r io.Reader) (*job.Record, error) {
	kind, err := s.parserKind(parserName)
	if err != nil {
		return nil, err
	}

	jobID := id.NewJobID()
	size, err := s.uploads.Save(jobID, filename, r)
	if err != nil {
		return nil, err
	}

	rec := job.NewRecord(jobID, filename, kind)
	if err := s.store.CreateJob(ctx, rec); err != nil {
		s.removeFile(jobID)
		return nil, fmt.Errorf("gateway: create job: %w", err)
	}

	entryID, err := s.store.Enqueue(ctx, &queue.Entry{JobID: jobID, Filename: filename, Parser: kind})
	if err != nil {
		if derr := s.store.DeleteJob(ctx, jobID); derr != nil {
			s.logger.Error("failed to remove unqueued job",
				slog.String("job_id", jobID.String()),
				slog.String("error", derr.Error()),
			)
		}
		s.removeFile(jobID)
		return nil, fmt.Errorf("gateway: enqueue job: %w", err)
	}

	s.logger.Info("job submitted",
		slog.String("job_id", jobID.String()),
		slog.String("entry_id", entryID),
		slog.String("filename", filename),
		slog.String("parser", string(kind)),
		slog.Int64("bytes", size),
	)
	s.ext.EmitJobSubmitted(ctx, rec)
	return rec, nil
}

// Status returns the job record.
func (s *Service) Status(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	return s.store.GetJob(ctx, jobID)
}

// Result returns the result of a COMPLETED job. It fails with
// ErrResultNotReady while the job is PENDING or PROCESSING, ErrJobFailed
// (carrying the job's error) when it FAILED, and ErrResultNotFound when the
// result has expired.
func (s *Service) Result(ctx context.Context, jobID id.JobID) (*result.Result, error) {
	rec, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case job.StatusPending, job.StatusProcessing:
		return nil, fmt.Errorf("%w: job is %s", pdfprocessor.ErrResultNotReady, rec.Status)
	case job.StatusFailed:
		msg := rec.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", pdfprocessor.ErrJobFailed, msg)
	}

	return s.store.GetResult(ctx, jobID)
}

// List returns every job, newest first.
func (s *Service) List(ctx context.Context) ([]*job.Record, error) {
	recs, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

// Delete removes the job record, its result and its staged file. The
// queue entry, if still unprocessed, is dropped by the worker that claims
// it.
func (s *Service) Delete(ctx context.Context, jobID id.JobID) error {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return err
	}

	var errs []error
	if err := s.store.DeleteJob(ctx, jobID); err != nil && !errors.Is(err, pdfprocessor.ErrJobNotFound) {
		errs = append(errs, err)
	}
	if err := s.store.DeleteResult(ctx, jobID); err != nil {
		errs = append(errs, err)
	}
	if err := s.uploads.Remove(jobID); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("job deleted", slog.String("job_id", jobID.String()))
	s.ext.EmitJobDeleted(ctx, jobID)
	return nil
}

// Health reports whether the backend is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Parsers returns the accepted parser variants.
func (s *Service) Parsers() []job.ParserKind { return s.parsers }

func (s *Service) parserKind(name string) (job.ParserKind, error) {
	kind, err := job.ParseParserKind(name)
	if err != nil {
		return "", err
	}
	for _, k := range s.parsers {
		if k == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not enabled", pdfprocessor.ErrInvalidParser, name)
}

func (s *Service) removeFile(jobID id.JobID) {
	if err := s.uploads.Remove(jobID); err != nil {
		s.logger.Warn("failed to remove staged file",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
}
