// Package memory implements store.Store in process memory. It mirrors the
// Redis backend closely enough to drive worker and gateway tests: entry IDs
// have the "<ms>-<seq>" shape, consumer groups keep a pending list with
// delivery counts, Claim blocks until an entry arrives, and results expire.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
	"github.com/alejochang/pdf-processor/store"
)

var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithClock replaces time.Now for result expiry, entry IDs and idle times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	jobs    map[string]*job.Record
	results map[string]storedResult

	log    []*queue.Entry
	lastMS int64
	seq    int64
	groups map[string]*group

	// wake is closed and replaced on every Enqueue to release blocked
	// claims.
	wake chan struct{}
}

type storedResult struct {
	r       *result.Result
	expires time.Time // zero means never
}

type group struct {
	next    int // index of the first never-delivered entry
	pending map[string]*delivery
}

type delivery struct {
	index       int
	consumer    string
	deliveredAt time.Time
	count       int64
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		jobs:    make(map[string]*job.Record),
		results: make(map[string]storedResult),
		groups:  make(map[string]*group),
		wake:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job records
// ──────────────────────────────────────────────────

// CreateJob stores r as a pending record. r is normalized in place: status
// pending, empty error, and CreatedAt set when zero.
func (s *Store) CreateJob(_ context.Context, r *job.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.ID.String()
	if _, exists := s.jobs[key]; exists {
		return pdfprocessor.ErrJobAlreadyExists
	}

	r.Status = job.StatusPending
	r.Error = ""
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	cp := *r
	s.jobs[key] = &cp
	return nil
}

// GetJob returns a copy of the record.
func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, pdfprocessor.ErrJobNotFound
	}
	cp := *r
	return &cp, nil
}

// SetJobStatus moves the record to status if the transition is allowed.
func (s *Store) SetJobStatus(_ context.Context, jobID id.JobID, status job.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.jobs[jobID.String()]
	if !ok {
		return pdfprocessor.ErrJobNotFound
	}
	if !r.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", pdfprocessor.ErrInvalidTransition, r.Status, status)
	}

	r.Status = status
	if status == job.StatusFailed {
		r.Error = errMsg
	} else {
		r.Error = ""
	}
	return nil
}

// ListJobs returns copies of all records.
func (s *Store) ListJobs(_ context.Context) ([]*job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*job.Record, 0, len(s.jobs))
	for _, r := range s.jobs {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteJob removes a record if present.
func (s *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, jobID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Results
// ──────────────────────────────────────────────────

// PutResult replaces the result for r.JobID. A non-positive ttl keeps it
// forever.
func (s *Store) PutResult(_ context.Context, r *result.Result, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := storedResult{r: copyResult(r)}
	if ttl > 0 {
		sr.expires = s.now().Add(ttl)
	}
	s.results[r.JobID.String()] = sr
	return nil
}

// GetResult returns a copy of the result unless it is missing or expired.
func (s *Store) GetResult(_ context.Context, jobID id.JobID) (*result.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobID.String()
	sr, ok := s.results[key]
	if !ok {
		return nil, pdfprocessor.ErrResultNotFound
	}
	if !sr.expires.IsZero() && !s.now().Before(sr.expires) {
		delete(s.results, key)
		return nil, pdfprocessor.ErrResultNotFound
	}
	return copyResult(sr.r), nil
}

// DeleteResult removes a result if present.
func (s *Store) DeleteResult(_ context.Context, jobID id.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, jobID.String())
	return nil
}

func copyResult(r *result.Result) *result.Result {
	cp := *r
	cp.Pages = append([]pdfprocessor.Page(nil), r.Pages...)
	return &cp
}

// ──────────────────────────────────────────────────
// Work queue
// ──────────────────────────────────────────────────

// Enqueue appends a copy of e and returns its new ID.
func (s *Store) Enqueue(_ context.Context, e *queue.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.lastMS {
		ms = s.lastMS
		s.seq++
	} else {
		s.lastMS = ms
		s.seq = 0
	}

	cp := *e
	cp.ID = strconv.FormatInt(ms, 10) + "-" + strconv.FormatInt(s.seq, 10)
	cp.Deliveries = 0
	s.log = append(s.log, &cp)

	close(s.wake)
	s.wake = make(chan struct{})
	return cp.ID, nil
}

// EnsureGroup creates group at the start of the log if it does not exist.
func (s *Store) EnsureGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; !ok {
		s.groups[name] = &group{pending: make(map[string]*delivery)}
	}
	return nil
}

// Claim hands out never-delivered entries, waiting up to block for one to
// arrive.
func (s *Store) Claim(ctx context.Context, name, consumer string, count int, block time.Duration) ([]*queue.Entry, error) {
	if count < 1 {
		count = 1
	}
	var timer <-chan time.Time
	if block > 0 {
		t := time.NewTimer(block)
		defer t.Stop()
		timer = t.C
	}

	for {
		s.mu.Lock()
		g, ok := s.groups[name]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: pdfprocessor/memory: claim: group %q does not exist", pdfprocessor.ErrQueueUnavailable, name)
		}

		if g.next < len(s.log) {
			now := s.now()
			var out []*queue.Entry
			for ; g.next < len(s.log) && len(out) < count; g.next++ {
				e := s.log[g.next]
				g.pending[e.ID] = &delivery{index: g.next, consumer: consumer, deliveredAt: now, count: 1}
				cp := *e
				cp.Deliveries = 1
				out = append(out, &cp)
			}
			s.mu.Unlock()
			return out, nil
		}
		wake := s.wake
		s.mu.Unlock()

		if timer == nil {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, nil
		case <-wake:
		}
	}
}

// Acknowledge drops entryID from the group's pending list.
func (s *Store) Acknowledge(_ context.Context, name, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[name]; ok {
		delete(g.pending, entryID)
	}
	return nil
}

// Pending lists the group's unacknowledged entries, oldest first.
func (s *Store) Pending(_ context.Context, name string, count int) ([]queue.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	now := s.now()
	ids := g.sortedPending()
	if count > 0 && len(ids) > count {
		ids = ids[:count]
	}
	out := make([]queue.Pending, 0, len(ids))
	for _, entryID := range ids {
		d := g.pending[entryID]
		out = append(out, queue.Pending{
			EntryID:    entryID,
			Consumer:   d.consumer,
			Idle:       now.Sub(d.deliveredAt),
			Deliveries: d.count,
		})
	}
	return out, nil
}

// Reclaim transfers idle pending entries to consumer.
func (s *Store) Reclaim(_ context.Context, name, consumer string, minIdle time.Duration, count int) ([]*queue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	now := s.now()
	var out []*queue.Entry
	for _, entryID := range g.sortedPending() {
		if count > 0 && len(out) >= count {
			break
		}
		d := g.pending[entryID]
		if now.Sub(d.deliveredAt) < minIdle {
			continue
		}
		d.consumer = consumer
		d.deliveredAt = now
		d.count++

		cp := *s.log[d.index]
		cp.Deliveries = d.count
		out = append(out, &cp)
	}
	return out, nil
}

func (g *group) sortedPending() []string {
	ids := make([]string, 0, len(g.pending))
	for entryID := range g.pending {
		ids = append(ids, entryID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.pending[ids[i]].index < g.pending[ids[j]].index
	})
	return ids
}
