package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/backoff"
	"github.com/alejochang/pdf-processor/ext"
	"github.com/alejochang/pdf-processor/gateway"
	"github.com/alejochang/pdf-processor/job"
	mw "github.com/alejochang/pdf-processor/middleware"
	"github.com/alejochang/pdf-processor/observability"
	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/parser/pdftext"
	"github.com/alejochang/pdf-processor/parser/remote"
	"github.com/alejochang/pdf-processor/store"
	"github.com/alejochang/pdf-processor/upload"
	"github.com/alejochang/pdf-processor/worker"
)

const instrumentationName = "github.com/alejochang/pdf-processor"

// Engine holds the wired subsystems. Use Build to create one.
type Engine struct {
	cfg        pdfprocessor.Config
	store      store.Store
	parsers    *parser.Registry
	uploads    *upload.Dir
	extensions *ext.Registry
	exts       []ext.Extension
	executor   *worker.Executor
	pool       *worker.Pool
	reclaimer  *worker.Reclaimer
	gateway    *gateway.Service
	mws        []mw.Middleware
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by all subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithParsers replaces the registry that DefaultParsers would build.
func WithParsers(r *parser.Registry) Option {
	return func(eng *Engine) { eng.parsers = r }
}

// WithMiddleware adds middleware inside the default chain, closest to the
// parser call.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m...) }
}

// WithTracerProvider sets a custom OTel TracerProvider. If not set, the
// global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// DefaultParsers binds pypdf to the local pdftotext parser and, when
// cfg.RemoteParserURL is set, gemini and mistral to the remote parser
// service.
func DefaultParsers(cfg pdfprocessor.Config, logger *slog.Logger) *parser.Registry {
	reg := parser.NewRegistry()
	reg.Register(job.ParserPyPDF, pdftext.New(
		pdftext.WithBinary(cfg.PdftotextPath),
		pdftext.WithLogger(logger),
	))
	if cfg.RemoteParserURL != "" {
		for _, kind := range []job.ParserKind{job.ParserGemini, job.ParserMistral} {
			reg.Register(kind, remote.New(cfg.RemoteParserURL, kind, remote.WithLogger(logger)))
		}
	}
	return reg
}

// Build validates cfg and wires every subsystem on top of s. The caller
// keeps ownership of s.
func Build(cfg pdfprocessor.Config, s store.Store, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: store is required", pdfprocessor.ErrInvalidConfig)
	}

	eng := &Engine{
		cfg:    cfg,
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	if eng.parsers == nil {
		eng.parsers = DefaultParsers(cfg, eng.logger)
	}

	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Recover sits inside tracing and metrics so panics are recorded as
	// failed parses.
	allMws := []mw.Middleware{
		mw.Logging(eng.logger),
		tracingMw,
		metricsMw,
		mw.Recover(eng.logger),
		mw.Timeout(cfg.ParseTimeout, eng.logger),
	}
	allMws = append(allMws, eng.mws...)

	eng.uploads = upload.New(cfg.UploadDir,
		upload.WithMaxSize(cfg.MaxFileSize),
		upload.WithLogger(eng.logger),
	)

	eng.executor = worker.NewExecutor(s, eng.parsers, cfg.Group, eng.logger,
		worker.WithResultTTL(cfg.ResultTTL),
		worker.WithMiddleware(allMws...),
		worker.WithUploadDir(eng.uploads),
		worker.WithExtensions(eng.extensions),
	)

	workerOpts := []worker.Option{
		worker.WithClaimCount(cfg.ClaimCount),
		worker.WithClaimBlock(cfg.ClaimBlock),
		worker.WithBackoff(backoff.NewConstant(cfg.ErrorBackoff)),
	}
	if cfg.ClaimRate > 0 {
		burst := max(int(cfg.ClaimRate), 1)
		workerOpts = append(workerOpts, worker.WithClaimRateLimit(rate.Limit(cfg.ClaimRate), burst))
	}
	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(cfg.Concurrency),
		worker.WithWorkerOptions(workerOpts...),
	}

	if cfg.RecoverySchedule != "" {
		r, err := worker.NewReclaimer(s, eng.executor, cfg.Consumer+"-reclaimer", eng.logger,
			worker.WithSchedule(cfg.RecoverySchedule),
			worker.WithMinIdle(cfg.RecoveryMinIdle),
			worker.WithMaxDeliveries(cfg.RecoveryMaxDeliveries),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pdfprocessor.ErrInvalidConfig, err)
		}
		eng.reclaimer = r
		poolOpts = append(poolOpts, worker.WithReclaimer(r))
	}
	eng.pool = worker.NewPool(s, eng.executor, cfg.Consumer, eng.logger, poolOpts...)

	eng.gateway = gateway.New(s, eng.uploads,
		gateway.WithLogger(eng.logger),
		gateway.WithExtensions(eng.extensions),
		gateway.WithParsers(eng.parsers.Kinds()...),
	)

	return eng, nil
}

// RunWorkers runs the worker pool until ctx is canceled, then notifies
// Shutdown extensions.
func (eng *Engine) RunWorkers(ctx context.Context) error {
	eng.logger.Info("starting workers",
		slog.String("stream_group", eng.cfg.Group),
		slog.String("consumer", eng.cfg.Consumer),
		slog.Int("concurrency", eng.cfg.Concurrency),
	)
	err := eng.pool.Run(ctx)
	eng.extensions.EmitShutdown(context.WithoutCancel(ctx))
	return err
}

// Config returns the configuration the engine was built with.
func (eng *Engine) Config() pdfprocessor.Config { return eng.cfg }

// Store returns the backend store.
func (eng *Engine) Store() store.Store { return eng.store }

// Gateway returns the submission service.
func (eng *Engine) Gateway() *gateway.Service { return eng.gateway }

// Executor returns the shared job executor.
func (eng *Engine) Executor() *worker.Executor { return eng.executor }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Reclaimer returns the recovery sweep, or nil when recovery is disabled.
func (eng *Engine) Reclaimer() *worker.Reclaimer { return eng.reclaimer }

// Parsers returns the parser registry.
func (eng *Engine) Parsers() *parser.Registry { return eng.parsers }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }
