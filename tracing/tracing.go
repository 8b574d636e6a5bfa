// Package tracing sets up OpenTelemetry for the client and starts the spans
// around SkyDB and registry operations.
package tracing

import (
	"context"

	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/version"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// serviceName is the trace service name
	serviceName = "skynet-go"

	// defaultSamplingRatio default sample ratio
	defaultSamplingRatio = 1

	tracerName = "github.com/skynetlabs/skynet"
)

// Config configures tracing.
type Config struct {
	// Enabled turns on exporting. The exporter itself is chosen through
	// the standard OTEL_TRACES_EXPORTER environment variables.
	Enabled bool `yaml:"enabled,omitempty"`

	// SamplingRatio is the fraction of traces sampled. Zero means 1.
	SamplingRatio float64 `yaml:"samplingratio,omitempty"`
}

// InitOpenTelemetry installs a global tracer provider exporting through the
// exporter selected by the environment, plus any extra exporters. The
// returned function flushes and shuts the provider down.
func InitOpenTelemetry(ctx context.Context, config Config, extra ...sdktrace.SpanExporter) (func(context.Context) error, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version.Version()),
	)

	exp, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return nil, err
	}
	var exporter sdktrace.SpanExporter = exp
	if len(extra) > 0 {
		exporter = newCompositeExporter(append([]sdktrace.SpanExporter{exp}, extra...)...)
	}

	ratio := config.SamplingRatio
	if ratio <= 0 {
		ratio = defaultSamplingRatio
	}

	sp := sdktrace.NewBatchSpanProcessor(exporter)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sp),
	)
	otel.SetTracerProvider(provider)
	otel.SetErrorHandler(&loggerWriter{logger: dcontext.GetLogger(ctx)})

	pr := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	otel.SetTextMapPropagator(pr)

	return provider.Shutdown, nil
}

// StartSpan starts a span from the global tracer provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (trace.Span, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return span, ctx
}

// StopSpan ends span.
func StopSpan(span trace.Span) {
	span.End()
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
