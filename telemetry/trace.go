package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//nolint:gochecknoglobals // OpenTelemetry attribute keys must be global for reuse
var (
	AttrMethodKey  = attribute.Key("lingua_method")
	AttrPackageKey = attribute.Key("lingua_package")
	AttrStatusKey  = attribute.Key("lingua_status")
	AttrErrorKey   = attribute.Key("lingua_error")
	AttrLocaleKey  = attribute.Key("lingua_locale")
	AttrKeyKey     = attribute.Key("lingua_key")
)

type spanContextKey struct{}

// spanStart is what End needs to record the latency of a span started by Start.
type spanStart struct {
	method string
	at     time.Time
}

type tracer struct {
	pkg     string
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// NewTracer creates a tracer whose spans are named after methods of pkg.
func NewTracer(pkg string, options ...trace.TracerOption) Tracer {
	return &tracer{
		pkg:     pkg,
		tracer:  otel.Tracer(pkg, options...),
		latency: LatencyMeasure(pkg),
	}
}

// ForString tags a span with the string key and locale it works on.
func ForString(key, locale string) trace.SpanStartOption {
	return trace.WithAttributes(AttrKeyKey.String(key), AttrLocaleKey.String(locale))
}

// ForLocale tags a span with the locale it works on.
func ForLocale(locale string) trace.SpanStartOption {
	return trace.WithAttributes(AttrLocaleKey.String(locale))
}

//nolint:spancheck // spans are returned to the caller which ends them
func (t *tracer) Start(
	ctx context.Context,
	method string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	options = append(options, trace.WithAttributes(AttrMethodKey.String(method)))

	ctx, span := t.tracer.Start(ctx, method, options...)
	return context.WithValue(ctx, spanContextKey{}, spanStart{method: t.pkg + "/" + method, at: time.Now()}), span
}

func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	if err != nil {
		options = append(options, trace.WithStackTrace(true))
		span.SetAttributes(AttrErrorKey.String(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(options...)

	started, ok := ctx.Value(spanContextKey{}).(spanStart)
	if !ok {
		util.Log(ctx).Debug("span ended with a context Start did not return")
		return
	}

	t.latency.Record(ctx,
		float64(time.Since(started.at).Milliseconds()),
		metric.WithAttributes(
			AttrStatusKey.String(ErrorCode(err)),
			AttrMethodKey.String(started.method)),
	)
}

// ErrorCode maps err to the status attribute recorded with latencies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	default:
		return "err"
	}
}
