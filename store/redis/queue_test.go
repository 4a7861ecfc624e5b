package redis_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/store/redis"
)

const group = "pdf-workers"

func enqueue(t *testing.T, s *redis.Store) (*queue.Entry, string) {
	t.Helper()
	e := &queue.Entry{JobID: id.NewJobID(), Filename: "report.pdf", Parser: job.ParserMistral}
	entryID, err := s.Enqueue(context.Background(), e)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return e, entryID
}

func parseEntryID(t *testing.T, entryID string) (int64, int64) {
	t.Helper()
	msPart, seqPart, ok := strings.Cut(entryID, "-")
	if !ok {
		t.Fatalf("malformed entry id %q", entryID)
	}
	ms, err1 := strconv.ParseInt(msPart, 10, 64)
	seq, err2 := strconv.ParseInt(seqPart, 10, 64)
	if err1 != nil || err2 != nil {
		t.Fatalf("malformed entry id %q", entryID)
	}
	return ms, seq
}

func TestEnqueueAssignsIncreasingIDs(t *testing.T) {
	s, _ := setup(t)
	_, first := enqueue(t, s)
	_, second := enqueue(t, s)

	m1, s1 := parseEntryID(t, first)
	m2, s2 := parseEntryID(t, second)
	if m2 < m1 || (m2 == m1 && s2 <= s1) {
		t.Fatalf("%s is not after %s", second, first)
	}
}

func TestEnsureGroupIdempotent(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()

	for i := range 2 {
		if err := s.EnsureGroup(ctx, group); err != nil {
			t.Fatalf("EnsureGroup #%d: %v", i+1, err)
		}
	}
	if !mr.Exists(redis.DefaultStream) {
		t.Fatal("EnsureGroup should create the stream")
	}
}

func TestClaimReadsFromStartOfLog(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	e, entryID := enqueue(t, s)
	if err := s.EnsureGroup(ctx, group); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	entries, err := s.Claim(ctx, group, "worker-1", 1, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != entryID || got.JobID != e.JobID || got.Filename != e.Filename || got.Parser != e.Parser || got.Deliveries != 1 {
		t.Errorf("got %+v", got)
	}

	// Delivered once; a second consumer gets nothing.
	entries, err = s.Claim(ctx, group, "worker-2", 1, 0)
	if err != nil || len(entries) != 0 {
		t.Fatalf("second claim = %d, %v", len(entries), err)
	}
}

func TestClaimEmptyReturnsWithinBlock(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, group); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}

	start := time.Now()
	entries, err := s.Claim(ctx, group, "worker-1", 1, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("len = %d, want 0", len(entries))
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Claim took %v", elapsed)
	}
}

func TestClaimWithoutGroupFails(t *testing.T) {
	s, _ := setup(t)
	enqueue(t, s)

	_, err := s.Claim(context.Background(), "nope", "worker-1", 1, 0)
	if !errors.Is(err, pdfprocessor.ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	_, entryID := enqueue(t, s)
	if err := s.EnsureGroup(ctx, group); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	if _, err := s.Claim(ctx, group, "worker-1", 1, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	for i := range 2 {
		if err := s.Acknowledge(ctx, group, entryID); err != nil {
			t.Fatalf("Acknowledge #%d: %v", i+1, err)
		}
	}
	for _, unknown := range []string{"0-1", "not-an-id", "", "12-"} {
		if err := s.Acknowledge(ctx, group, unknown); err != nil {
			t.Fatalf("Acknowledge %q: %v", unknown, err)
		}
	}

	pending, err := s.Pending(ctx, group, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %+v, want empty", pending)
	}
}

func TestUnackedEntryStaysPendingAndIsReclaimable(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	e, entryID := enqueue(t, s)
	if err := s.EnsureGroup(ctx, group); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	if _, err := s.Claim(ctx, group, "worker-1", 1, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	pending, err := s.Pending(ctx, group, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].EntryID != entryID || pending[0].Consumer != "worker-1" || pending[0].Deliveries != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	if got, err := s.Reclaim(ctx, group, "worker-2", time.Hour, 10); err != nil || len(got) != 0 {
		t.Fatalf("Reclaim before min idle = %d, %v", len(got), err)
	}

	got, err := s.Reclaim(ctx, group, "worker-2", 0, 10)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if len(got) != 1 || got[0].ID != entryID || got[0].JobID != e.JobID || got[0].Deliveries != 2 {
		t.Fatalf("reclaimed = %+v", got)
	}

	pending, err = s.Pending(ctx, group, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Consumer != "worker-2" || pending[0].Deliveries != 2 {
		t.Fatalf("pending after reclaim = %+v", pending)
	}
}

func TestMalformedEntryYieldsNilJobID(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()
	if err := s.EnsureGroup(ctx, group); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	if _, err := mr.XAdd(redis.DefaultStream, "*", []string{"job_id", "not-an-id", "parser", "pypdf"}); err != nil {
		t.Fatalf("XAdd: %v", err)
	}

	entries, err := s.Claim(ctx, group, "worker-1", 1, 0)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(entries) != 1 || !entries[0].JobID.IsNil() {
		t.Fatalf("entries = %+v", entries)
	}
}
