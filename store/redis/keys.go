package redis

// Key layout, relative to the configured prefix:
//
//	job:{id}     hash of the job record
//	result:{id}  encoded result, expires after the result TTL
//	{stream}     work queue stream

func (s *Store) jobKey(id string) string { return s.prefix + "job:" + id }

func (s *Store) jobPattern() string { return s.prefix + "job:*" }

func (s *Store) resultKey(id string) string { return s.prefix + "result:" + id }

func (s *Store) streamKey() string { return s.prefix + s.stream }
