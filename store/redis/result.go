package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/result"
)

// PutResult encodes r and stores it with SET EX. A non-positive ttl keeps
// it forever.
func (s *Store) PutResult(ctx context.Context, r *result.Result, ttl time.Duration) error {
	data, err := s.codec.Encode(r)
	if err != nil {
		return fmt.Errorf("pdfprocessor/redis: encode result (%s): %w", s.codec.Name(), err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.resultKey(r.JobID.String()), data, ttl).Err(); err != nil {
		return storeErr("put result", err)
	}
	return nil
}

// GetResult fetches and decodes the result for jobID.
func (s *Store) GetResult(ctx context.Context, jobID id.JobID) (*result.Result, error) {
	data, err := s.client.Get(ctx, s.resultKey(jobID.String())).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, pdfprocessor.ErrResultNotFound
		}
		return nil, storeErr("get result", err)
	}
	r, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("pdfprocessor/redis: get result %s: %w", jobID, err)
	}
	return r, nil
}

// DeleteResult removes the result for jobID.
func (s *Store) DeleteResult(ctx context.Context, jobID id.JobID) error {
	if err := s.client.Del(ctx, s.resultKey(jobID.String())).Err(); err != nil {
		return storeErr("delete result", err)
	}
	return nil
}
