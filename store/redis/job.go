package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
)

// createJobScript writes the hash only if the key is absent.
// KEYS[1] job key; ARGV field/value pairs.
var createJobScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// setStatusScript updates status and error only when the current status is
// one of the allowed sources. Returns 1 on success, -1 when the record is
// missing, or the current status when the move is rejected.
// KEYS[1] job key; ARGV[1] status, ARGV[2] error, ARGV[3..] allowed sources.
var setStatusScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
	return -1
end
for i = 3, #ARGV do
	if ARGV[i] == cur then
		redis.call('HSET', KEYS[1], 'status', ARGV[1], 'error', ARGV[2])
		return 1
	end
end
return cur
`)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// CreateJob stores r as a pending record. r is normalized in place: status
// pending, empty error, and CreatedAt set when zero.
func (s *Store) CreateJob(ctx context.Context, r *job.Record) error {
	r.Status = job.StatusPending
	r.Error = ""
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	created, err := createJobScript.Run(ctx, s.client, []string{s.jobKey(r.ID.String())}, recordToArgs(r)...).Int()
	if err != nil {
		return storeErr("create job", err)
	}
	if created == 0 {
		return pdfprocessor.ErrJobAlreadyExists
	}
	return nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	vals, err := s.client.HGetAll(ctx, s.jobKey(jobID.String())).Result()
	if err != nil {
		return nil, storeErr("get job", err)
	}
	if len(vals) == 0 {
		return nil, pdfprocessor.ErrJobNotFound
	}
	return mapToRecord(vals)
}

// SetJobStatus atomically moves the record to status.
func (s *Store) SetJobStatus(ctx context.Context, jobID id.JobID, status job.Status, errMsg string) error {
	if status != job.StatusFailed {
		errMsg = ""
	}
	args := []interface{}{string(status), errMsg}
	for _, from := range job.AllowedFrom(status) {
		args = append(args, string(from))
	}

	res, err := setStatusScript.Run(ctx, s.client, []string{s.jobKey(jobID.String())}, args...).Result()
	if err != nil {
		return storeErr("set job status", err)
	}
	switch v := res.(type) {
	case int64:
		if v == 1 {
			return nil
		}
		return pdfprocessor.ErrJobNotFound
	case string:
		return fmt.Errorf("%w: %s -> %s", pdfprocessor.ErrInvalidTransition, v, status)
	}
	return storeErr("set job status", fmt.Errorf("unexpected script reply %T", res))
}

// ListJobs scans job:* and returns every record it can decode.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Record, error) {
	var (
		records []*job.Record
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.jobPattern(), scanBatch).Result()
		if err != nil {
			return nil, storeErr("list jobs scan", err)
		}

		if len(keys) > 0 {
			pipe := s.client.Pipeline()
			cmds := make([]*goredis.MapStringStringCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.HGetAll(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
				return nil, storeErr("list jobs fetch", err)
			}
			for i, cmd := range cmds {
				vals := cmd.Val()
				if len(vals) == 0 {
					continue // deleted between SCAN and HGETALL
				}
				r, err := mapToRecord(vals)
				if err != nil {
					s.logger.Warn("skipping malformed job record",
						"key", keys[i],
						"error", err,
					)
					continue
				}
				records = append(records, r)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return records, nil
}

// DeleteJob removes a record by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	if err := s.client.Del(ctx, s.jobKey(jobID.String())).Err(); err != nil {
		return storeErr("delete job", err)
	}
	return nil
}

// ── helpers ──

func recordToMap(r *job.Record) map[string]string {
	return map[string]string{
		"job_id":     r.ID.String(),
		"status":     string(r.Status),
		"filename":   r.Filename,
		"parser":     string(r.Parser),
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"error":      r.Error,
	}
}

func recordToArgs(r *job.Record) []interface{} {
	m := recordToMap(r)
	args := make([]interface{}, 0, 2*len(m))
	for k, v := range m {
		args = append(args, k, v)
	}
	return args
}

func mapToRecord(m map[string]string) (*job.Record, error) {
	jID, err := id.ParseJobID(m["job_id"])
	if err != nil {
		return nil, fmt.Errorf("pdfprocessor/redis: parse job id: %w", err)
	}
	status, err := job.ParseStatus(m["status"])
	if err != nil {
		return nil, fmt.Errorf("pdfprocessor/redis: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, m["created_at"])
	if err != nil {
		return nil, fmt.Errorf("pdfprocessor/redis: parse created_at: %w", err)
	}

	return &job.Record{
		ID:        jID,
		Status:    status,
		Filename:  m["filename"],
		Parser:    job.ParserKind(strings.ToLower(m["parser"])),
		CreatedAt: createdAt,
		Error:     m["error"],
	}, nil
}
