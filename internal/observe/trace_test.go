package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// withTestSpan starts a span from a throwaway SDK tracer provider so the
// returned context carries real trace and span IDs.
func withTestSpan(t *testing.T) (context.Context, func()) {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer(tracerName).Start(context.Background(), "test-span")
	return ctx, func() { span.End() }
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(no span) = %q, want empty", got)
	}

	ctx, end := withTestSpan(t)
	defer end()

	if got := CorrelationID(ctx); len(got) != 32 {
		t.Errorf("CorrelationID(span) = %q, want 32 hex chars", got)
	}
}

func TestLoggerAddsTraceAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, end := withTestSpan(t)
	defer end()

	Logger(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "trace_id=") || !strings.Contains(out, "span_id=") {
		t.Errorf("log output missing trace attributes: %s", out)
	}
}

func TestLoggerWithoutSpanIsPlain(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(context.Background()).Info("hello")

	if strings.Contains(buf.String(), "trace_id=") {
		t.Errorf("log output has trace_id without an active span: %s", buf.String())
	}
}
