package pdfprocessor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings consumed by the gateway and the workers.
type Config struct {
	// RedisURL is the connection URL of the Redis backend.
	RedisURL string

	// Stream is the name of the work queue.
	Stream string

	// Group is the consumer group shared by all workers.
	Group string

	// Consumer is this worker's name inside Group. With Concurrency > 1
	// each loop appends its index.
	Consumer string

	// ResultTTL is how long a finished result stays retrievable.
	ResultTTL time.Duration

	// ClaimBlock bounds how long a claim waits for new entries.
	ClaimBlock time.Duration

	// ClaimCount is the maximum number of entries claimed per iteration.
	ClaimCount int

	// ClaimRate caps claims per second per worker loop. Zero disables the
	// limit.
	ClaimRate float64

	// Concurrency is the number of independent worker loops per process.
	Concurrency int

	// ErrorBackoff is the pause after a failed claim.
	ErrorBackoff time.Duration

	// RecoverySchedule is the cron expression driving the pending-list
	// sweep. Empty disables recovery.
	RecoverySchedule string

	// RecoveryMinIdle is how long an entry must sit unacknowledged before
	// the sweep takes it over. It must exceed ParseTimeout so a live worker
	// never loses its entry mid-parse.
	RecoveryMinIdle time.Duration

	// RecoveryMaxDeliveries is how many deliveries an entry gets before the
	// sweep fails the job instead of reprocessing it.
	RecoveryMaxDeliveries int64

	// UploadDir is where submitted files are staged as {job_id}.pdf.
	UploadDir string

	// MaxFileSize is the largest accepted upload, in bytes.
	MaxFileSize int64

	// ResultCodec selects the result serialization: "json" or "msgpack".
	ResultCodec string

	// ParseTimeout bounds a single parser invocation. Zero means no bound.
	ParseTimeout time.Duration

	// PdftotextPath is the pdftotext binary used by the plain-text parser.
	PdftotextPath string

	// RemoteParserURL is the endpoint of the AI/OCR parser service.
	RemoteParserURL string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is "text" or "json".
	LogFormat string

	// AuditLog writes a job audit trail to the logger.
	AuditLog bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RedisURL:              "redis://localhost:6379",
		Stream:                "pdf-jobs",
		Group:                 "pdf-workers",
		Consumer:              "worker-1",
		ResultTTL:             time.Hour,
		ClaimBlock:            5 * time.Second,
		ClaimCount:            1,
		Concurrency:           1,
		ErrorBackoff:          5 * time.Second,
		RecoverySchedule:      "@every 1m",
		RecoveryMinIdle:       15 * time.Minute,
		RecoveryMaxDeliveries: 3,
		UploadDir:             "./uploads",
		MaxFileSize:           25 * 1024 * 1024,
		ResultCodec:           "json",
		ParseTimeout:          10 * time.Minute,
		PdftotextPath:         "pdftotext",
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// LoadConfig overlays environment variables on DefaultConfig. Unparseable
// values keep the default.
func LoadConfig() Config {
	c := DefaultConfig()

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.Stream = getEnv("REDIS_STREAM_NAME", c.Stream)
	c.Group = getEnv("REDIS_CONSUMER_GROUP", c.Group)
	c.Consumer = getEnv("REDIS_CONSUMER_NAME", c.Consumer)
	c.ResultTTL = time.Duration(getEnvAsInt("REDIS_RESULT_TTL_SECONDS", int(c.ResultTTL/time.Second))) * time.Second
	c.ClaimBlock = time.Duration(getEnvAsInt("WORKER_BLOCK_TIME_MS", int(c.ClaimBlock/time.Millisecond))) * time.Millisecond
	c.ClaimCount = getEnvAsInt("WORKER_CLAIM_COUNT", c.ClaimCount)
	c.ClaimRate = getEnvAsFloat("WORKER_CLAIM_RATE", c.ClaimRate)
	c.Concurrency = getEnvAsInt("WORKER_CONCURRENCY", c.Concurrency)
	c.ErrorBackoff = getEnvAsDuration("WORKER_ERROR_BACKOFF", c.ErrorBackoff)
	c.RecoverySchedule = getEnv("RECOVERY_SCHEDULE", c.RecoverySchedule)
	c.RecoveryMinIdle = getEnvAsDuration("RECOVERY_MIN_IDLE", c.RecoveryMinIdle)
	c.RecoveryMaxDeliveries = int64(getEnvAsInt("RECOVERY_MAX_DELIVERIES", int(c.RecoveryMaxDeliveries)))
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.MaxFileSize = int64(getEnvAsInt("MAX_FILE_SIZE_MB", int(c.MaxFileSize>>20))) << 20
	c.ResultCodec = strings.ToLower(getEnv("RESULT_CODEC", c.ResultCodec))
	c.ParseTimeout = getEnvAsDuration("PARSE_TIMEOUT", c.ParseTimeout)
	c.PdftotextPath = getEnv("PDFTOTEXT_PATH", c.PdftotextPath)
	c.RemoteParserURL = getEnv("REMOTE_PARSER_URL", c.RemoteParserURL)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))
	c.AuditLog = getEnvAsBool("AUDIT_LOG", c.AuditLog)

	return c
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case c.RedisURL == "":
		return fmt.Errorf("%w: REDIS_URL is required", ErrInvalidConfig)
	case c.Stream == "" || c.Group == "" || c.Consumer == "":
		return fmt.Errorf("%w: stream, group and consumer names are required", ErrInvalidConfig)
	case c.ResultTTL <= 0:
		return fmt.Errorf("%w: result TTL must be positive", ErrInvalidConfig)
	case c.ClaimCount < 1:
		return fmt.Errorf("%w: claim count must be at least 1", ErrInvalidConfig)
	case c.ClaimRate < 0:
		return fmt.Errorf("%w: claim rate must not be negative", ErrInvalidConfig)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	case c.MaxFileSize <= 0:
		return fmt.Errorf("%w: max file size must be positive", ErrInvalidConfig)
	case c.ResultCodec != "json" && c.ResultCodec != "msgpack":
		return fmt.Errorf("%w: unknown result codec %q", ErrInvalidConfig, c.ResultCodec)
	case c.RecoverySchedule != "" && c.RecoveryMaxDeliveries < 1:
		return fmt.Errorf("%w: recovery max deliveries must be at least 1", ErrInvalidConfig)
	case c.RecoverySchedule != "" && c.ParseTimeout > 0 && c.RecoveryMinIdle <= c.ParseTimeout:
		return fmt.Errorf("%w: recovery min idle (%s) must exceed the parse timeout (%s)",
			ErrInvalidConfig, c.RecoveryMinIdle, c.ParseTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
