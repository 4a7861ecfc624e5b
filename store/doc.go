// Package store defines the aggregate persistence interface.
//
// Each component (job, result, queue) defines its own contract. The
// composite [Store] embeds them all:
//
//	type Store interface {
//	    job.Store
//	    result.Store
//	    queue.Queue
//
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/redis: Redis hashes, strings with TTL, and a stream with a
//     consumer group
//
// # Usage
//
//	opt, err := redis.ParseURL(cfg.RedisURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := redis.NewClient(opt)
//	defer client.Close()
//
//	s := redisstore.New(client, redisstore.WithStream(cfg.Stream))
//	if err := s.Ping(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
