package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/result"
	"github.com/alejochang/pdf-processor/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// DefaultStream is the stream used when WithStream is not given.
const DefaultStream = "pdf-jobs"

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithStream sets the stream backing the work queue.
func WithStream(name string) Option {
	return func(s *Store) { s.stream = name }
}

// WithKeyPrefix namespaces every key, e.g. "staging:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithCodec sets the result serialization. Every process sharing a Redis
// must use the same codec.
func WithCodec(c result.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
	stream string
	prefix string
	codec  result.Codec
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.Default(),
		stream: DefaultStream,
		codec:  result.JSONCodec{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: pdfprocessor/redis: %s: %w", pdfprocessor.ErrStoreUnavailable, op, err)
}

func queueErr(op string, err error) error {
	return fmt.Errorf("%w: pdfprocessor/redis: %s: %w", pdfprocessor.ErrQueueUnavailable, op, err)
}
