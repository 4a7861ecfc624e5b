package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/backoff"
	"github.com/alejochang/pdf-processor/ext"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/middleware"
	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
	"github.com/alejochang/pdf-processor/store"
	"github.com/alejochang/pdf-processor/upload"
)

// DefaultResultTTL is how long results are kept when WithResultTTL is not
// given.
const DefaultResultTTL = time.Hour

// DefaultStatusAttempts is how many times a status write is tried before
// the executor gives up on a transient store fault.
const DefaultStatusAttempts = 3

// PathResolver maps an entry to the file the parser reads.
type PathResolver func(e *queue.Entry) string

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithResultTTL sets the expiry of stored results.
func WithResultTTL(d time.Duration) ExecutorOption {
	return func(x *Executor) { x.resultTTL = d }
}

// WithMiddleware sets the chain wrapped around every parser call,
// replacing the default Logging, Recover and Timeout chain. Include
// middleware.Recover to keep parser panics contained.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(x *Executor) { x.mw = middleware.Chain(mws...) }
}

// WithPathResolver sets how entries map to staged files.
func WithPathResolver(fn PathResolver) ExecutorOption {
	return func(x *Executor) { x.path = fn }
}

// WithUploadDir resolves entries to {dir}/{job_id}.pdf.
func WithUploadDir(dir *upload.Dir) ExecutorOption {
	return func(x *Executor) {
		x.path = func(e *queue.Entry) string { return dir.Path(e.JobID) }
	}
}

// WithExtensions notifies r of job starts and outcomes.
func WithExtensions(r *ext.Registry) ExecutorOption {
	return func(x *Executor) { x.ext = r }
}

// WithStatusRetry sets how often a status write is retried on a store
// fault and the pause between tries. attempts below 1 means 1.
func WithStatusRetry(attempts int, strategy backoff.Strategy) ExecutorOption {
	return func(x *Executor) {
		x.statusAttempts = max(attempts, 1)
		x.statusBackoff = strategy
	}
}

// Stats counts entries by outcome.
type Stats struct {
	Processed int64 // entries handed to Process, including skips
	Completed int64
	Failed    int64
	Skipped   int64 // redeliveries of finished or deleted jobs
	Faults    int64 // parsed entries whose final status could not be written
}

// Executor runs one entry through the job state machine. It is safe for
// concurrent use.
type Executor struct {
	store     store.Store
	parsers   *parser.Registry
	group     string
	resultTTL time.Duration
	mw        middleware.Middleware
	path      PathResolver
	ext       *ext.Registry
	logger    *slog.Logger

	statusAttempts int
	statusBackoff  backoff.Strategy

	processed atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	faults    atomic.Int64
}

// NewExecutor creates an Executor that acknowledges entries in group.
func NewExecutor(
	s store.Store,
	parsers *parser.Registry,
	group string,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	x := &Executor{
		store:     s,
		parsers:   parsers,
		group:     group,
		resultTTL: DefaultResultTTL,
		mw:        middleware.Default(logger, 0),
		logger:    logger,

		statusAttempts: DefaultStatusAttempts,
		statusBackoff:  backoff.NewExponential(100*time.Millisecond, 2*time.Second),
	}
	WithUploadDir(upload.New("./uploads"))(x)
	for _, o := range opts {
		o(x)
	}
	return x
}

// Group returns the consumer group the executor acknowledges in.
func (x *Executor) Group() string { return x.group }

// Stats returns a snapshot of the outcome counters.
func (x *Executor) Stats() Stats {
	return Stats{
		Processed: x.processed.Load(),
		Completed: x.completed.Load(),
		Failed:    x.failed.Load(),
		Skipped:   x.skipped.Load(),
		Faults:    x.faults.Load(),
	}
}

// Process drives e to a terminal status and acknowledges it. Parser
// failures end in a FAILED record and are not returned. The returned error
// reports store faults only; the entry is acknowledged regardless.
//
// Cancellation of ctx does not interrupt Process.
func (x *Executor) Process(ctx context.Context, e *queue.Entry) error {
	ctx = context.WithoutCancel(ctx)
	x.processed.Add(1)

	log := x.logger.With(
		slog.String("job_id", e.JobID.String()),
		slog.String("entry_id", e.ID),
	)
	defer x.acknowledge(ctx, log, e)

	if e.JobID.IsNil() {
		log.Warn("entry has no valid job id, dropping")
		x.skipped.Add(1)
		return nil
	}

	var errs []error

	rec, err := x.store.GetJob(ctx, e.JobID)
	switch {
	case errors.Is(err, pdfprocessor.ErrJobNotFound):
		log.Info("job record deleted, dropping entry")
		x.skipped.Add(1)
		return nil
	case err != nil:
		log.Error("failed to read job record", slog.String("error", err.Error()))
		errs = append(errs, err)
		rec = &job.Record{ID: e.JobID, Filename: e.Filename, Parser: e.Parser}
	case rec.Status.IsTerminal():
		log.Info("job already finished, dropping redelivered entry",
			slog.String("status", string(rec.Status)),
			slog.Int64("deliveries", e.Deliveries),
		)
		x.skipped.Add(1)
		return nil
	}

	if err := x.writeStatus(ctx, rec.ID, job.StatusProcessing, ""); err != nil {
		switch {
		case errors.Is(err, pdfprocessor.ErrJobNotFound):
			log.Info("job record deleted, dropping entry")
			x.skipped.Add(1)
			return nil
		case errors.Is(err, pdfprocessor.ErrInvalidTransition):
			log.Info("job finished by another consumer, dropping entry", slog.String("error", err.Error()))
			x.skipped.Add(1)
			return nil
		}
		// The record is still pending. A terminal write from there can only
		// be FAILED, so the parser is not run.
		log.Error("failed to mark job processing", slog.String("error", err.Error()))
		errs = append(errs, err)
		msg := parser.Describe(parser.NewError(parser.CategoryInternal, fmt.Errorf("mark processing: %w", err)))
		return errors.Join(append(errs, x.finishFailed(ctx, log, rec, msg, 0))...)
	}
	rec.Status = job.StatusProcessing
	x.ext.EmitJobStarted(ctx, rec, e)

	start := time.Now()
	doc, parseErr := x.mw(ctx, e, func(ctx context.Context) (*parser.Document, error) {
		return x.parsers.Parse(ctx, e.Parser, x.path(e))
	})
	elapsed := time.Since(start)

	if parseErr == nil {
		if doc == nil {
			doc = &parser.Document{}
		}
		res := result.Completed(rec, doc.Pages, doc.Summary, elapsed)
		if err := x.store.PutResult(ctx, res, x.resultTTL); err != nil {
			log.Error("failed to store result", slog.String("error", err.Error()))
			errs = append(errs, err)
			parseErr = parser.NewError(parser.CategoryInternal, fmt.Errorf("store result: %w", err))
		} else {
			if err := x.setStatus(ctx, log, rec, job.StatusCompleted, ""); err != nil {
				x.faults.Add(1)
				return errors.Join(append(errs, err)...)
			}
			x.completed.Add(1)
			rec.Status = job.StatusCompleted
			x.ext.EmitJobCompleted(ctx, rec, res, elapsed)
			log.Info("job completed",
				slog.Int("pages", len(doc.Pages)),
				slog.Float64("processing_time_seconds", res.ProcessingTimeSeconds),
			)
			return errors.Join(errs...)
		}
	}

	return errors.Join(append(errs, x.finishFailed(ctx, log, rec, parser.Describe(parseErr), elapsed))...)
}

// finishFailed fails the job and reports the outcome.
func (x *Executor) finishFailed(ctx context.Context, log *slog.Logger, rec *job.Record, msg string, elapsed time.Duration) error {
	if err := x.fail(ctx, log, rec, msg, elapsed); err != nil {
		x.faults.Add(1)
		return err
	}
	x.failed.Add(1)
	x.ext.EmitJobFailed(ctx, rec, msg)
	log.Warn("job failed", slog.String("error", msg))
	return nil
}

// DeadLetter fails the job behind e with msg without running the parser,
// and acknowledges e. Finished or deleted jobs are only acknowledged.
func (x *Executor) DeadLetter(ctx context.Context, e *queue.Entry, msg string) error {
	ctx = context.WithoutCancel(ctx)
	x.processed.Add(1)

	log := x.logger.With(
		slog.String("job_id", e.JobID.String()),
		slog.String("entry_id", e.ID),
	)
	defer x.acknowledge(ctx, log, e)

	if e.JobID.IsNil() {
		x.skipped.Add(1)
		return nil
	}
	rec, err := x.store.GetJob(ctx, e.JobID)
	switch {
	case errors.Is(err, pdfprocessor.ErrJobNotFound):
		x.skipped.Add(1)
		return nil
	case err != nil:
		log.Error("failed to read job record", slog.String("error", err.Error()))
		return err
	case rec.Status.IsTerminal():
		x.skipped.Add(1)
		return nil
	}

	if err := x.fail(ctx, log, rec, msg, 0); err != nil {
		x.faults.Add(1)
		return err
	}
	x.failed.Add(1)
	x.ext.EmitJobDeadLettered(ctx, rec, e, msg)
	x.ext.EmitJobFailed(ctx, rec, msg)
	log.Warn("job dead-lettered", slog.String("error", msg), slog.Int64("deliveries", e.Deliveries))
	return nil
}

// fail writes the FAILED result first, then the FAILED status.
func (x *Executor) fail(ctx context.Context, log *slog.Logger, rec *job.Record, msg string, elapsed time.Duration) error {
	var errs []error
	if err := x.store.PutResult(ctx, result.Failed(rec, msg, elapsed), x.resultTTL); err != nil {
		log.Error("failed to store error result", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := x.setStatus(ctx, log, rec, job.StatusFailed, msg); err != nil {
		errs = append(errs, err)
	}
	rec.Status, rec.Error = job.StatusFailed, msg
	return errors.Join(errs...)
}

// setStatus writes a terminal status. A record deleted concurrently, or
// one another consumer already finished, is left alone; any other
// rejection is returned.
func (x *Executor) setStatus(ctx context.Context, log *slog.Logger, rec *job.Record, status job.Status, msg string) error {
	err := x.writeStatus(ctx, rec.ID, status, msg)
	if errors.Is(err, pdfprocessor.ErrInvalidTransition) {
		if cur, getErr := x.store.GetJob(ctx, rec.ID); getErr == nil && cur.Status.IsTerminal() {
			log.Warn("status not updated, job already finished",
				slog.String("status", string(status)),
				slog.String("current", string(cur.Status)),
			)
			return nil
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pdfprocessor.ErrJobNotFound):
		log.Warn("status not updated, job deleted", slog.String("status", string(status)))
		return nil
	}
	log.Error("failed to update job status",
		slog.String("status", string(status)),
		slog.String("error", err.Error()),
	)
	return err
}

// writeStatus retries SetJobStatus while the store reports a fault.
// Rejections (missing record, invalid transition) are returned at once.
func (x *Executor) writeStatus(ctx context.Context, jobID id.JobID, status job.Status, msg string) error {
	var err error
	for attempt := 1; attempt <= x.statusAttempts; attempt++ {
		err = x.store.SetJobStatus(ctx, jobID, status, msg)
		if err == nil ||
			errors.Is(err, pdfprocessor.ErrJobNotFound) ||
			errors.Is(err, pdfprocessor.ErrInvalidTransition) {
			return err
		}
		if attempt < x.statusAttempts && x.statusBackoff != nil {
			_ = backoff.Sleep(ctx, x.statusBackoff.Delay(attempt))
		}
	}
	return err
}

func (x *Executor) acknowledge(ctx context.Context, log *slog.Logger, e *queue.Entry) {
	if err := x.store.Acknowledge(ctx, x.group, e.ID); err != nil {
		log.Error("failed to acknowledge entry", slog.String("error", err.Error()))
	}
}
