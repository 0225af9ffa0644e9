package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a telemetry manager.
type Option func(ctx context.Context, m *manager)

// WithDisableTracing leaves the global no-op providers in place.
func WithDisableTracing() Option {
	return func(_ context.Context, m *manager) {
		m.disableTracing = true
	}
}

// WithServiceName sets the service name for resource tagging.
func WithServiceName(name string) Option {
	return func(_ context.Context, m *manager) {
		m.serviceName = name
	}
}

// WithServiceVersion sets the service version for resource tagging.
func WithServiceVersion(version string) Option {
	return func(_ context.Context, m *manager) {
		m.serviceVersion = version
	}
}

// WithServiceEnvironment sets the deployment environment for resource tagging.
func WithServiceEnvironment(env string) Option {
	return func(_ context.Context, m *manager) {
		m.serviceEnvironment = env
	}
}

// WithMeteredPackages registers the latency views of the named packages.
func WithMeteredPackages(pkgs ...string) Option {
	return func(_ context.Context, m *manager) {
		m.meteredPkgs = append(m.meteredPkgs, pkgs...)
	}
}

// WithPropagationTextMap specifies the trace baggage carrier to use.
func WithPropagationTextMap(carrier propagation.TextMapPropagator) Option {
	return func(_ context.Context, m *manager) {
		m.traceTextMap = carrier
	}
}

// WithTraceExporter specifies the trace exporter to use.
func WithTraceExporter(exporter sdktrace.SpanExporter) Option {
	return func(_ context.Context, m *manager) {
		m.traceExporter = exporter
	}
}

// WithTraceSampler specifies the trace sampler to use.
func WithTraceSampler(sampler sdktrace.Sampler) Option {
	return func(_ context.Context, m *manager) {
		m.traceSampler = sampler
	}
}

// WithMetricsReader specifies the metrics reader to use.
func WithMetricsReader(reader sdkmetrics.Reader) Option {
	return func(_ context.Context, m *manager) {
		m.metricsReader = reader
	}
}

// WithTraceLogsExporter specifies the log exporter to use.
func WithTraceLogsExporter(exporter sdklogs.Exporter) Option {
	return func(_ context.Context, m *manager) {
		m.traceLogsExporter = exporter
	}
}
