// Package engine wires the processor's subsystems together from a
// [pdfprocessor.Config] and a backend store: the parser registry, the
// middleware chain around parser calls, lifecycle extensions, the worker
// pool with its recovery sweep, and the gateway service.
//
// # Building an Engine
//
//	client := redis.NewClient(opts)
//	s := redisstore.New(client, redisstore.WithStream(cfg.Stream))
//
//	eng, err := engine.Build(cfg, s,
//	    engine.WithLogger(logger),
//	    engine.WithExtension(myExtension),
//	)
//
// # Running
//
//	// Submission side
//	rec, err := eng.Gateway().Submit(ctx, "report.pdf", "pypdf", file)
//
//	// Worker side; blocks until ctx is canceled
//	err := eng.RunWorkers(ctx)
//
// # Options
//
//   - [WithLogger]: set the logger
//   - [WithExtension]: register a lifecycle extension
//   - [WithParsers]: replace the parser registry built from the config
//   - [WithMiddleware]: add a middleware to the parser chain
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
