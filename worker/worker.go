package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejochang/pdf-processor/backoff"
	"github.com/alejochang/pdf-processor/queue"
)

// Option configures a Worker.
type Option func(*Worker)

// WithClaimCount sets how many entries one claim may return.
func WithClaimCount(n int) Option {
	return func(w *Worker) { w.claimCount = n }
}

// WithClaimBlock sets how long a claim waits for new entries.
func WithClaimBlock(d time.Duration) Option {
	return func(w *Worker) { w.claimBlock = d }
}

// WithBackoff sets the pause strategy after queue or store faults.
func WithBackoff(s backoff.Strategy) Option {
	return func(w *Worker) { w.backoff = s }
}

// WithClaimRateLimit caps how often the worker claims, shielding a slow
// parser backend from bursts. A zero limit disables it.
func WithClaimRateLimit(limit rate.Limit, burst int) Option {
	return func(w *Worker) {
		if limit == 0 {
			w.limiter = nil
			return
		}
		w.limiter = rate.NewLimiter(limit, burst)
	}
}

// Worker is one consumer of the group: a sequential claim and process
// loop.
type Worker struct {
	queue      queue.Queue
	executor   *Executor
	consumer   string
	claimCount int
	claimBlock time.Duration
	backoff    backoff.Strategy
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Worker consuming as consumer.
func New(q queue.Queue, executor *Executor, consumer string, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		queue:      q,
		executor:   executor,
		consumer:   consumer,
		claimCount: 1,
		claimBlock: 5 * time.Second,
		backoff:    backoff.DefaultStrategy(),
		logger:     logger,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Consumer returns the worker's consumer name.
func (w *Worker) Consumer() string { return w.consumer }

// Run claims and processes entries until ctx is canceled. Every claimed
// entry is processed and acknowledged before Run returns; cancellation is
// only observed between claims. Queue and store faults are retried after a
// backoff. Run returns nil on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	group := w.executor.Group()
	log := w.logger.With(slog.String("consumer", w.consumer), slog.String("group", group))

	failures := 0
	pause := func(err error) bool {
		failures++
		d := w.backoff.Delay(failures)
		log.Error("worker loop error, backing off",
			slog.String("error", err.Error()),
			slog.Int("failures", failures),
			slog.Duration("backoff", d),
		)
		return backoff.Sleep(ctx, d) == nil
	}

	for {
		if ctx.Err() != nil {
			log.Info("worker stopped")
			return nil
		}
		if err := w.queue.EnsureGroup(ctx, group); err != nil {
			if ctx.Err() != nil || !pause(err) {
				log.Info("worker stopped")
				return nil
			}
			continue
		}
		break
	}
	failures = 0
	log.Info("worker started", slog.Int("claim_count", w.claimCount), slog.Duration("claim_block", w.claimBlock))

	for {
		if ctx.Err() != nil {
			log.Info("worker stopped")
			return nil
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				log.Info("worker stopped")
				return nil
			}
		}

		entries, err := w.queue.Claim(ctx, group, w.consumer, w.claimCount, w.claimBlock)
		if err != nil {
			if ctx.Err() != nil || !pause(err) {
				log.Info("worker stopped")
				return nil
			}
			continue
		}

		var batchErr error
		for _, e := range entries {
			if err := w.executor.Process(ctx, e); err != nil {
				batchErr = err
			}
		}
		if batchErr != nil {
			if !pause(batchErr) {
				log.Info("worker stopped")
				return nil
			}
			continue
		}
		failures = 0
	}
}
