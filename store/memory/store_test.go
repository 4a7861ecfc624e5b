package memory

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEntry(r *job.Record) *queue.Entry {
	return &queue.Entry{JobID: r.ID, Filename: r.Filename, Parser: r.Parser}
}

// ──────────────────────────────────────────────────
// Job record tests
// ──────────────────────────────────────────────────

func TestCreateAndGetJob(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := &job.Record{ID: id.NewJobID(), Status: job.StatusCompleted, Filename: "a.pdf", Parser: job.ParserPyPDF, Error: "stale"}

	tests := []struct {
		name    string
		wantErr error
	}{
		{"create new record", nil},
		{"create duplicate record", pdfprocessor.ErrJobAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.CreateJob(ctx, r); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, pdfprocessor.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSetJobStatus(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	if err := s.CreateJob(ctx, r); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	steps := []struct {
		status  job.Status
		errMsg  string
		wantErr error
	}{
		{job.StatusProcessing, "", nil},
		{job.StatusProcessing, "", nil},
		{job.StatusPending, "", pdfprocessor.ErrInvalidTransition},
		{job.StatusFailed, "InvalidInput: bad format", nil},
		{job.StatusFailed, "InvalidInput: bad format", nil},
		{job.StatusCompleted, "", pdfprocessor.ErrInvalidTransition},
		{job.StatusProcessing, "", pdfprocessor.ErrInvalidTransition},
	}
	for i, st := range steps {
		if err := s.SetJobStatus(ctx, r.ID, st.status, st.errMsg); !errors.Is(err, st.wantErr) {
			t.Fatalf("step %d (%s): got %v, want %v", i, st.status, err, st.wantErr)
		}
	}

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusFailed || got.Error != "InvalidInput: bad format" {
		t.Errorf("got %s %q", got.Status, got.Error)
	}

	if err := s.SetJobStatus(ctx, id.NewJobID(), job.StatusProcessing, ""); !errors.Is(err, pdfprocessor.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestListAndDeleteJobs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	a := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	b := job.NewRecord(id.NewJobID(), "b.pdf", job.ParserGemini)
	for _, r := range []*job.Record{a, b} {
		if err := s.CreateJob(ctx, r); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	list, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}

	if err := s.DeleteJob(ctx, a.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if err := s.DeleteJob(ctx, a.ID); err != nil {
		t.Fatalf("DeleteJob twice: %v", err)
	}
	if _, err := s.GetJob(ctx, a.ID); !errors.Is(err, pdfprocessor.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after delete, got %v", err)
	}
	if list, _ := s.ListJobs(ctx); len(list) != 1 {
		t.Fatalf("len after delete = %d, want 1", len(list))
	}
}

// ──────────────────────────────────────────────────
// Result tests
// ──────────────────────────────────────────────────

func TestResultExpiresWhileRecordSurvives(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	if err := s.CreateJob(ctx, r); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	res := result.Completed(r, []pdfprocessor.Page{{Number: 1, Text: "hello"}}, "", time.Second)
	if err := s.PutResult(ctx, res, time.Hour); err != nil {
		t.Fatalf("PutResult: %v", err)
	}

	got, err := s.GetResult(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(got.Pages) != 1 || got.Pages[0].Text != "hello" {
		t.Errorf("Pages = %+v", got.Pages)
	}

	clock.Advance(time.Hour)

	if _, err := s.GetResult(ctx, r.ID); !errors.Is(err, pdfprocessor.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound after ttl, got %v", err)
	}
	if _, err := s.GetJob(ctx, r.ID); err != nil {
		t.Fatalf("record should survive result expiry: %v", err)
	}
}

func TestPutResultOverwritesAndDelete(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	if err := s.PutResult(ctx, result.Failed(r, "Timeout: slow", time.Second), time.Hour); err != nil {
		t.Fatalf("PutResult: %v", err)
	}
	if err := s.PutResult(ctx, result.Completed(r, nil, "sum", time.Second), time.Hour); err != nil {
		t.Fatalf("PutResult: %v", err)
	}

	got, err := s.GetResult(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Status != job.StatusCompleted || got.Summary != "sum" || got.Error != "" {
		t.Errorf("got %+v", got)
	}

	if err := s.DeleteResult(ctx, r.ID); err != nil {
		t.Fatalf("DeleteResult: %v", err)
	}
	if err := s.DeleteResult(ctx, r.ID); err != nil {
		t.Fatalf("DeleteResult twice: %v", err)
	}
	if _, err := s.GetResult(ctx, r.ID); !errors.Is(err, pdfprocessor.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Queue tests
// ──────────────────────────────────────────────────

func TestEnqueueIDsIncrease(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	var prev string
	for i := range 5 {
		if i == 3 {
			clock.Advance(time.Millisecond)
		}
		entryID, err := s.Enqueue(ctx, newEntry(r))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if prev != "" && compareEntryIDs(prev, entryID) >= 0 {
			t.Fatalf("entry %q not after %q", entryID, prev)
		}
		prev = entryID
	}
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	entries, err := s.Claim(ctx, "g", "c1", 10, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("claimed %d entries, want 5", len(entries))
	}
	if entries[4].ID != prev {
		t.Fatalf("last entry = %q, want %q", entries[4].ID, prev)
	}
}

// compareEntryIDs orders "<ms>-<seq>" IDs numerically.
func compareEntryIDs(a, b string) int {
	am, as := splitEntryID(a)
	bm, bs := splitEntryID(b)
	switch {
	case am != bm:
		if am < bm {
			return -1
		}
		return 1
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func splitEntryID(entryID string) (ms, seq int64) {
	msPart, seqPart, _ := strings.Cut(entryID, "-")
	ms, _ = strconv.ParseInt(msPart, 10, 64)   //nolint:errcheck // IDs are generated by Enqueue
	seq, _ = strconv.ParseInt(seqPart, 10, 64) //nolint:errcheck // IDs are generated by Enqueue
	return ms, seq
}

func TestEnsureGroupIdempotent(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	if _, err := s.Enqueue(ctx, newEntry(r)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	entries, err := s.Claim(ctx, "g", "c1", 10, 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Claim = %d, %v", len(entries), err)
	}

	// A second EnsureGroup must not rewind the group.
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup again: %v", err)
	}
	entries, err = s.Claim(ctx, "g", "c1", 10, 0)
	if err != nil || len(entries) != 0 {
		t.Fatalf("Claim after re-ensure = %d, %v", len(entries), err)
	}
}

func TestClaimUnknownGroup(t *testing.T) {
	t.Parallel()
	s := New()
	if _, err := s.Claim(context.Background(), "missing", "c1", 1, 0); !errors.Is(err, pdfprocessor.ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}
}

func TestClaimEmptyTimesOut(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	start := time.Now()
	entries, err := s.Claim(ctx, "g", "c1", 1, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("Claim returned after %v", elapsed)
	}
}

func TestClaimWakesOnEnqueue(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = s.Enqueue(ctx, newEntry(r))
	}()

	entries, err := s.Claim(ctx, "g", "c1", 1, 5*time.Second)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != r.ID || entries[0].Deliveries != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestClaimHonorsContext(t *testing.T) {
	t.Parallel()
	s := New()
	if err := s.EnsureGroup(context.Background(), "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Claim(ctx, "g", "c1", 1, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestClaimMutualExclusion(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	const total = 50
	for range total {
		r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
		if _, err := s.Enqueue(ctx, newEntry(r)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]string)
		wg   sync.WaitGroup
	)
	for _, consumer := range []string{"c1", "c2", "c3", "c4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				entries, err := s.Claim(ctx, "g", consumer, 3, 0)
				if err != nil {
					t.Errorf("Claim: %v", err)
					return
				}
				if len(entries) == 0 {
					return
				}
				mu.Lock()
				for _, e := range entries {
					if prev, dup := seen[e.ID]; dup {
						t.Errorf("entry %s claimed by %s and %s", e.ID, prev, consumer)
					}
					seen[e.ID] = consumer
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("claimed %d entries, want %d", len(seen), total)
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	entryID, err := s.Enqueue(ctx, newEntry(r))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := s.Claim(ctx, "g", "c1", 1, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	for i := range 3 {
		if err := s.Acknowledge(ctx, "g", entryID); err != nil {
			t.Fatalf("Acknowledge #%d: %v", i+1, err)
		}
	}
	for _, unknown := range []string{"0-999", "not-an-id"} {
		if err := s.Acknowledge(ctx, "g", unknown); err != nil {
			t.Fatalf("Acknowledge %q: %v", unknown, err)
		}
	}

	pending, err := s.Pending(ctx, "g", 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %+v, want empty", pending)
	}
}

func TestUnackedEntryStaysPendingAndIsReclaimable(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	r := job.NewRecord(id.NewJobID(), "a.pdf", job.ParserPyPDF)
	entryID, err := s.Enqueue(ctx, newEntry(r))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := s.Claim(ctx, "g", "w1", 1, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// w1 dies. Nobody else sees the entry through Claim.
	if entries, _ := s.Claim(ctx, "g", "w2", 1, 0); len(entries) != 0 {
		t.Fatalf("w2 claimed %d entries, want 0", len(entries))
	}

	clock.Advance(time.Minute)
	pending, err := s.Pending(ctx, "g", 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}
	p := pending[0]
	if p.EntryID != entryID || p.Consumer != "w1" || p.Deliveries != 1 || p.Idle != time.Minute {
		t.Fatalf("pending = %+v", p)
	}

	if got, _ := s.Reclaim(ctx, "g", "w2", 5*time.Minute, 10); len(got) != 0 {
		t.Fatalf("reclaimed %d entries before min idle", len(got))
	}

	clock.Advance(5 * time.Minute)
	got, err := s.Reclaim(ctx, "g", "w2", 5*time.Minute, 10)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if len(got) != 1 || got[0].ID != entryID || got[0].JobID != r.ID || got[0].Deliveries != 2 {
		t.Fatalf("reclaimed = %+v", got)
	}

	pending, _ = s.Pending(ctx, "g", 10)
	if len(pending) != 1 || pending[0].Consumer != "w2" || pending[0].Idle != 0 {
		t.Fatalf("pending after reclaim = %+v", pending)
	}
}
