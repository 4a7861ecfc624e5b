package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	pdfprocessor "github.com/alejochang/pdf-processor"
	audithook "github.com/alejochang/pdf-processor/audit_hook"
	"github.com/alejochang/pdf-processor/engine"
	"github.com/alejochang/pdf-processor/result"
	redisstore "github.com/alejochang/pdf-processor/store/redis"
)

// app is the state shared by all subcommands, built in the root command's
// PersistentPreRunE.
type app struct {
	cfg    pdfprocessor.Config
	logger *slog.Logger
	client *redis.Client
	store  *redisstore.Store
	engine *engine.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var consumer string

	root := &cobra.Command{
		Use:           "pdfproc",
		Short:         "Distributed PDF processing queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg = pdfprocessor.LoadConfig()
			if consumer != "" {
				a.cfg.Consumer = consumer
			}
			a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel, a.cfg.LogFormat)
			slog.SetDefault(a.logger)
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&consumer, "consumer", "", "consumer name (overrides REDIS_CONSUMER_NAME)")

	root.AddCommand(
		newWorkerCmd(a),
		newSubmitCmd(a),
		newStatusCmd(a),
		newResultCmd(a),
		newJobsCmd(a),
		newDeleteCmd(a),
		newHealthCmd(a),
	)
	return root
}

// open connects to Redis and builds the engine.
func (a *app) open(ctx context.Context) error {
	redisOpts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("%w: REDIS_URL: %w", pdfprocessor.ErrInvalidConfig, err)
	}
	a.client = redis.NewClient(redisOpts)

	a.store = redisstore.New(a.client,
		redisstore.WithLogger(a.logger),
		redisstore.WithStream(a.cfg.Stream),
		redisstore.WithCodec(result.GetCodec(a.cfg.ResultCodec)),
	)
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("redis not reachable yet", slog.String("error", err.Error()))
	}

	opts := []engine.Option{engine.WithLogger(a.logger)}
	if a.cfg.AuditLog {
		auditLogger := a.logger.With(slog.String("component", "audit"))
		opts = append(opts, engine.WithExtension(
			audithook.New(audithook.LogRecorder(auditLogger), audithook.WithLogger(a.logger)),
		))
	}
	a.engine, err = engine.Build(a.cfg, a.store, opts...)
	return err
}

func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout
