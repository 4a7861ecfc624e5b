package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/alejochang/pdf-processor/backoff"
	"github.com/alejochang/pdf-processor/queue"
)

// Defaults for the recovery sweep.
const (
	DefaultSchedule      = "@every 1m"
	DefaultMinIdle       = 15 * time.Minute
	DefaultMaxDeliveries = 3
	DefaultSweepBatch    = 10
)

// CategoryMaxDeliveries prefixes the error of dead-lettered jobs.
const CategoryMaxDeliveries = "MaxDeliveriesExceeded"

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// ReclaimerOption configures a Reclaimer.
type ReclaimerOption func(*Reclaimer)

// WithSchedule sets the cron expression driving Run.
func WithSchedule(expr string) ReclaimerOption {
	return func(r *Reclaimer) { r.expr = expr }
}

// WithMinIdle sets how long an entry must be pending before it is taken
// over.
func WithMinIdle(d time.Duration) ReclaimerOption {
	return func(r *Reclaimer) { r.minIdle = d }
}

// WithMaxDeliveries sets how many deliveries an entry may have. A
// reclaimed entry beyond it fails its job instead of being reprocessed.
// Zero means unlimited.
func WithMaxDeliveries(n int64) ReclaimerOption {
	return func(r *Reclaimer) { r.maxDeliveries = n }
}

// WithSweepBatch sets how many entries one sweep takes over.
func WithSweepBatch(n int) ReclaimerOption {
	return func(r *Reclaimer) { r.batch = n }
}

// Reclaimer recovers entries claimed by consumers that died before
// acknowledging them.
type Reclaimer struct {
	queue    queue.Queue
	executor *Executor
	consumer string
	logger   *slog.Logger

	expr          string
	schedule      cronlib.Schedule
	minIdle       time.Duration
	maxDeliveries int64
	batch         int
}

// NewReclaimer creates a Reclaimer that takes entries over as consumer.
func NewReclaimer(q queue.Queue, executor *Executor, consumer string, logger *slog.Logger, opts ...ReclaimerOption) (*Reclaimer, error) {
	r := &Reclaimer{
		queue:         q,
		executor:      executor,
		consumer:      consumer,
		logger:        logger,
		expr:          DefaultSchedule,
		minIdle:       DefaultMinIdle,
		maxDeliveries: DefaultMaxDeliveries,
		batch:         DefaultSweepBatch,
	}
	for _, o := range opts {
		o(r)
	}

	sched, err := ParseSchedule(r.expr)
	if err != nil {
		return nil, fmt.Errorf("worker: reclaimer schedule %q: %w", r.expr, err)
	}
	r.schedule = sched
	return r, nil
}

// Sweep takes over idle pending entries once and drives each to a
// terminal status. Entries past the delivery limit are dead-lettered. It
// returns the number of entries handled.
func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
	entries, err := r.queue.Reclaim(ctx, r.executor.Group(), r.consumer, r.minIdle, r.batch)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, e := range entries {
		if r.maxDeliveries > 0 && e.Deliveries > r.maxDeliveries {
			msg := fmt.Sprintf("%s: entry %s delivered %d times", CategoryMaxDeliveries, e.ID, e.Deliveries-1)
			errs = append(errs, r.executor.DeadLetter(ctx, e, msg))
			continue
		}
		r.logger.Info("reprocessing reclaimed entry",
			slog.String("entry_id", e.ID),
			slog.String("job_id", e.JobID.String()),
			slog.Int64("deliveries", e.Deliveries),
		)
		errs = append(errs, r.executor.Process(ctx, e))
	}
	return len(entries), errors.Join(errs...)
}

// Run sweeps on the configured schedule until ctx is canceled.
func (r *Reclaimer) Run(ctx context.Context) error {
	r.logger.Info("reclaimer started",
		slog.String("consumer", r.consumer),
		slog.String("schedule", r.expr),
		slog.Duration("min_idle", r.minIdle),
		slog.Int64("max_deliveries", r.maxDeliveries),
	)

	for {
		next := r.schedule.Next(time.Now())
		if err := backoff.Sleep(ctx, time.Until(next)); err != nil {
			r.logger.Info("reclaimer stopped")
			return nil
		}

		n, err := r.Sweep(ctx)
		if err != nil {
			r.logger.Error("reclaim sweep failed", slog.String("error", err.Error()))
			continue
		}
		if n > 0 {
			r.logger.Info("reclaim sweep finished", slog.Int("entries", n))
		}
	}
}
