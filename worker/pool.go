package worker

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/alejochang/pdf-processor/queue"
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of worker loops.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithWorkerOptions applies opts to every worker of the pool.
func WithWorkerOptions(opts ...Option) PoolOption {
	return func(p *Pool) { p.workerOpts = append(p.workerOpts, opts...) }
}

// WithReclaimer runs r alongside the workers.
func WithReclaimer(r *Reclaimer) PoolOption {
	return func(p *Pool) { p.reclaimer = r }
}

// Pool runs several independent workers in one process. Each worker gets
// its own consumer name so the group tracks their pending lists apart.
type Pool struct {
	workers   []*Worker
	reclaimer *Reclaimer
	logger    *slog.Logger

	concurrency int
	workerOpts  []Option
}

// NewPool creates a pool of workers named consumer when concurrency is 1,
// and "<consumer>-1" .. "<consumer>-n" otherwise.
func NewPool(q queue.Queue, executor *Executor, consumer string, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{concurrency: 1, logger: logger}
	for _, o := range opts {
		o(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}

	for i := 1; i <= p.concurrency; i++ {
		name := consumer
		if p.concurrency > 1 {
			name = consumer + "-" + strconv.Itoa(i)
		}
		p.workers = append(p.workers, New(q, executor, name, logger, p.workerOpts...))
	}
	return p
}

// Workers returns the pool's workers.
func (p *Pool) Workers() []*Worker { return p.workers }

// Run starts every worker (and the reclaimer, if any) and blocks until all
// have stopped. Cancel ctx to shut down; in-flight entries finish first.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool starting", slog.Int("concurrency", len(p.workers)))

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(ctx) })
	}
	if p.reclaimer != nil {
		g.Go(func() error { return p.reclaimer.Run(ctx) })
	}

	err := g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}
