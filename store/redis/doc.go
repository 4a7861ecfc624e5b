// Package redis implements store.Store on Redis.
//
// Job records are hashes at job:{id}, mutated only through Lua scripts so
// create-if-absent and guarded status moves are single atomic operations.
// Results are strings at result:{id} written with SET EX and encoded by a
// result.Codec. The work queue is a stream (default "pdf-jobs") consumed
// through consumer groups: XREADGROUP hands out new entries, XACK retires
// them, and XPENDING with XCLAIM recovers entries whose consumer died.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	defer client.Close()
//
//	s := redis.New(client, redis.WithStream("pdf-jobs"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
