package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
)

// pendingScan bounds how many pending entries one Pending or Reclaim call
// inspects.
const pendingScan = 100

// Enqueue appends e to the stream with XADD.
func (s *Store) Enqueue(ctx context.Context, e *queue.Entry) (string, error) {
	entryID, err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.streamKey(),
		Values: map[string]interface{}{
			"job_id":   e.JobID.String(),
			"filename": e.Filename,
			"parser":   string(e.Parser),
		},
	}).Result()
	if err != nil {
		return "", queueErr("enqueue", err)
	}
	return entryID, nil
}

// EnsureGroup creates group at the start of the stream, creating the
// stream if needed.
func (s *Store) EnsureGroup(ctx context.Context, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, s.streamKey(), group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return queueErr("create group", err)
	}
	return nil
}

// Claim reads never-delivered entries with XREADGROUP ">".
func (s *Store) Claim(ctx context.Context, group, consumer string, count int, block time.Duration) ([]*queue.Entry, error) {
	// go-redis sends BLOCK for any non-negative value and BLOCK 0 waits
	// forever.
	switch {
	case block <= 0:
		block = -1
	case block < time.Millisecond:
		block = time.Millisecond
	}

	streams, err := s.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.streamKey(), ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, queueErr("claim", err)
	}

	var entries []*queue.Entry
	for _, st := range streams {
		for _, msg := range st.Messages {
			entries = append(entries, s.messageToEntry(msg, 1))
		}
	}
	return entries, nil
}

// Acknowledge retires entryID with XACK. An id that is not a stream id
// cannot be pending and is treated like any unknown id.
func (s *Store) Acknowledge(ctx context.Context, group, entryID string) error {
	if !validEntryID(entryID) {
		return nil
	}
	if err := s.client.XAck(ctx, s.streamKey(), group, entryID).Err(); err != nil {
		return queueErr("acknowledge", err)
	}
	return nil
}

// Pending lists the group's pending entries with XPENDING.
func (s *Store) Pending(ctx context.Context, group string, count int) ([]queue.Pending, error) {
	if count <= 0 {
		count = pendingScan
	}
	ext, err := s.pendingExt(ctx, group, count)
	if err != nil {
		return nil, err
	}
	out := make([]queue.Pending, len(ext))
	for i, p := range ext {
		out[i] = queue.Pending{
			EntryID:    p.ID,
			Consumer:   p.Consumer,
			Idle:       p.Idle,
			Deliveries: p.RetryCount,
		}
	}
	return out, nil
}

// Reclaim transfers idle pending entries to consumer with XCLAIM.
func (s *Store) Reclaim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]*queue.Entry, error) {
	scan := pendingScan
	if count > scan {
		scan = count
	}
	ext, err := s.pendingExt(ctx, group, scan)
	if err != nil {
		return nil, err
	}

	var (
		ids        []string
		deliveries = make(map[string]int64)
	)
	for _, p := range ext {
		if count > 0 && len(ids) >= count {
			break
		}
		if p.Idle < minIdle {
			continue
		}
		ids = append(ids, p.ID)
		deliveries[p.ID] = p.RetryCount
	}
	if len(ids) == 0 {
		return nil, nil
	}

	msgs, err := s.client.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   s.streamKey(),
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, queueErr("reclaim", err)
	}

	entries := make([]*queue.Entry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, s.messageToEntry(msg, deliveries[msg.ID]+1))
	}
	return entries, nil
}

func (s *Store) pendingExt(ctx context.Context, group string, count int) ([]goredis.XPendingExt, error) {
	ext, err := s.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: s.streamKey(),
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  int64(count),
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, queueErr("pending", err)
	}
	return ext, nil
}

// messageToEntry decodes a stream message. A malformed job_id yields an
// entry with a nil JobID, which the worker acknowledges as orphaned.
func (s *Store) messageToEntry(msg goredis.XMessage, deliveries int64) *queue.Entry {
	e := &queue.Entry{
		ID:         msg.ID,
		Filename:   stringValue(msg.Values, "filename"),
		Parser:     job.ParserKind(stringValue(msg.Values, "parser")),
		Deliveries: deliveries,
	}
	raw := stringValue(msg.Values, "job_id")
	jID, err := id.ParseJobID(raw)
	if err != nil {
		s.logger.Warn("stream entry has malformed job id",
			"entry_id", msg.ID,
			"job_id", raw,
			"error", err,
		)
		return e
	}
	e.JobID = jID
	return e
}

func stringValue(values map[string]interface{}, key string) string {
	v, _ := values[key].(string)
	return v
}

// validEntryID reports whether id has the "<ms>-<seq>" form XACK accepts.
func validEntryID(id string) bool {
	ms, seq, ok := strings.Cut(id, "-")
	if !ok {
		return false
	}
	if _, err := strconv.ParseUint(ms, 10, 64); err != nil {
		return false
	}
	_, err := strconv.ParseUint(seq, 10, 64)
	return err == nil
}
