package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans and records their latency when they end.
type Tracer interface {
	Start(ctx context.Context, methodName string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}

// Manager installs the OpenTelemetry SDK providers for a host process.
type Manager interface {
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Disabled() bool
	LogHandler() slog.Handler
}
