package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/engine"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/parser"
	"github.com/alejochang/pdf-processor/store/memory"
)

const pdfBody = "%PDF-1.4\nhello\n"

func testConfig(t *testing.T) pdfprocessor.Config {
	t.Helper()
	cfg := pdfprocessor.DefaultConfig()
	cfg.UploadDir = t.TempDir()
	cfg.ClaimBlock = 10 * time.Millisecond
	cfg.ErrorBackoff = 10 * time.Millisecond
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fileParser returns the staged file's content as a single page.
func fileParser() *parser.Registry {
	reg := parser.NewRegistry()
	reg.Register(job.ParserPyPDF, parser.Func(func(_ context.Context, path string) (*parser.Document, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, parser.NewError(parser.CategoryFileNotFound, err)
		}
		return &parser.Document{Pages: []pdfprocessor.Page{{Number: 1, Text: string(data)}}}, nil
	}))
	return reg
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*pdfprocessor.Config)
	}{
		{"no redis url", func(c *pdfprocessor.Config) { c.RedisURL = "" }},
		{"zero claim count", func(c *pdfprocessor.Config) { c.ClaimCount = 0 }},
		{"bad codec", func(c *pdfprocessor.Config) { c.ResultCodec = "xml" }},
		{"bad schedule", func(c *pdfprocessor.Config) { c.RecoverySchedule = "whenever" }},
		{"recovery overtakes parse", func(c *pdfprocessor.Config) { c.RecoveryMinIdle = c.ParseTimeout / 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := engine.Build(cfg, memory.New(), engine.WithLogger(discardLogger()))
			if !errors.Is(err, pdfprocessor.ErrInvalidConfig) {
				t.Fatalf("Build error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := engine.Build(testConfig(t), nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestDefaultParsers(t *testing.T) {
	cfg := testConfig(t)

	reg := engine.DefaultParsers(cfg, discardLogger())
	if _, ok := reg.Get(job.ParserPyPDF); !ok {
		t.Error("pypdf not registered")
	}
	if _, ok := reg.Get(job.ParserGemini); ok {
		t.Error("gemini registered without a remote parser URL")
	}

	cfg.RemoteParserURL = "http://parser.internal/parse"
	reg = engine.DefaultParsers(cfg, discardLogger())
	for _, k := range job.ParserKinds() {
		if _, ok := reg.Get(k); !ok {
			t.Errorf("%s not registered", k)
		}
	}
}

func TestGatewayAcceptsOnlyRegisteredParsers(t *testing.T) {
	eng, err := engine.Build(testConfig(t), memory.New(),
		engine.WithLogger(discardLogger()),
		engine.WithParsers(fileParser()),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = eng.Gateway().Submit(context.Background(), "a.pdf", "gemini", strings.NewReader(pdfBody))
	if !errors.Is(err, pdfprocessor.ErrInvalidParser) {
		t.Fatalf("Submit error = %v, want ErrInvalidParser", err)
	}
}

func TestSubmitToResult(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	cfg := testConfig(t)
	cfg.Concurrency = 2
	eng, err := engine.Build(cfg, memory.New(),
		engine.WithLogger(discardLogger()),
		engine.WithParsers(fileParser()),
		engine.WithMeterProvider(mp),
		engine.WithTracerProvider(tp),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if eng.Reclaimer() == nil {
		t.Error("reclaimer not built for a configured schedule")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.RunWorkers(ctx) }()

	gw := eng.Gateway()
	rec, err := gw.Submit(context.Background(), "hello.pdf", "pypdf", strings.NewReader(pdfBody))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		st, err := gw.Status(context.Background(), rec.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.Status.IsTerminal() {
			if st.Status != job.StatusCompleted {
				t.Fatalf("status = %q (%s), want completed", st.Status, st.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res, err := gw.Result(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(res.Pages) != 1 || res.Pages[0].Text != pdfBody {
		t.Errorf("pages = %+v", res.Pages)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunWorkers: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWorkers did not stop")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = true
		}
	}
	for _, name := range []string{"pdfprocessor.job.submitted", "pdfprocessor.job.completed", "pdfprocessor.parse.duration"} {
		if !seen[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}

	var parseSpans int
	for _, s := range sr.Ended() {
		if s.Name() == "pdfprocessor.parse" {
			parseSpans++
		}
	}
	if parseSpans != 1 {
		t.Errorf("parse spans = %d, want 1", parseSpans)
	}
}

func TestParserPanicFailsJob(t *testing.T) {
	reg := parser.NewRegistry()
	reg.Register(job.ParserPyPDF, parser.Func(func(context.Context, string) (*parser.Document, error) {
		panic("corrupt xref table")
	}))

	cfg := testConfig(t)
	cfg.RecoverySchedule = ""
	s := memory.New()
	eng, err := engine.Build(cfg, s, engine.WithLogger(discardLogger()), engine.WithParsers(reg))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if eng.Reclaimer() != nil {
		t.Error("reclaimer built with recovery disabled")
	}

	rec, err := eng.Gateway().Submit(context.Background(), "x.pdf", "pypdf", strings.NewReader(pdfBody))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx := context.Background()
	if err := s.EnsureGroup(ctx, cfg.Group); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	entries, err := s.Claim(ctx, cfg.Group, cfg.Consumer, 1, 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Claim = %v, %v", entries, err)
	}
	if err := eng.Executor().Process(ctx, entries[0]); err != nil {
		t.Fatalf("Process: %v", err)
	}

	_, err = eng.Gateway().Result(ctx, rec.ID)
	if !errors.Is(err, pdfprocessor.ErrJobFailed) || !strings.Contains(err.Error(), "Panic: corrupt xref table") {
		t.Fatalf("Result error = %v", err)
	}
	if _, err := eng.Gateway().Status(ctx, id.NewJobID()); !errors.Is(err, pdfprocessor.ErrJobNotFound) {
		t.Errorf("Status of unknown job = %v", err)
	}
}
