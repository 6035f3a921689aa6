package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts every habersin span. InitTracing replaces it.
var Tracer trace.Tracer = otel.Tracer("habersin")

// TracingConfig selects the exporter and sampling for InitTracing.
type TracingConfig struct {
	ServiceName string
	Version     string
	Environment string
	Enabled     bool
	// OTLPEndpoint switches export from stdout to OTLP over HTTP.
	OTLPEndpoint string
	// SampleRatio outside (0,1) samples every root span.
	SampleRatio float64
}

// InitTracing installs the global tracer provider and W3C propagation. The
// returned func flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	Tracer = otel.Tracer(cfg.ServiceName)
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing exporter: %w", err)
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	Tracer = provider.Tracer(cfg.ServiceName)

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint == "" {
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

var noopSpan = trace.SpanFromContext(context.Background())

// Span is a nil-safe handle on an internal span.
type Span struct {
	inner trace.Span
}

// NewSpan starts an internal span under ctx.
func NewSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (*Span, context.Context) {
	ctx, inner := Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return &Span{inner: inner}, ctx
}

func (s *Span) get() trace.Span {
	if s == nil || s.inner == nil {
		return noopSpan
	}
	return s.inner
}

// AddAttributes annotates the span.
func (s *Span) AddAttributes(attrs ...attribute.KeyValue) { s.get().SetAttributes(attrs...) }

// SetError marks the span failed. A nil err is ignored.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	sp := s.get()
	sp.RecordError(err)
	sp.SetStatus(codes.Error, err.Error())
}

// End finishes the span.
func (s *Span) End() { s.get().End() }

// TraceID is empty for spans that are not recording a trace.
func (s *Span) TraceID() string {
	sc := s.get().SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
