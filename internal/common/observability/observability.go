package observability

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the otel meter and tracer. A nil *Observability is valid and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	jobCounter       otelmetric.Int64Counter
	jobDuration      otelmetric.Float64Histogram
	mutationCounter  otelmetric.Int64Counter
	mutationDuration otelmetric.Float64Histogram
}

type options struct {
	registerer     prometheus.Registerer
	spanProcessors []sdktrace.SpanProcessor
	setGlobal      bool
}

type Option func(*options)

// WithRegisterer exports metrics to reg instead of the default prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanProcessor attaches a span processor, e.g. a tracetest.SpanRecorder.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.setGlobal = false }
}

func New(serviceName string, opts ...Option) *Observability {
	o := options{registerer: prometheus.DefaultRegisterer, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	tpOpts := make([]sdktrace.TracerProviderOption, 0, len(o.spanProcessors))
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)

	exporter, err := otelprom.New(otelprom.WithRegisterer(o.registerer))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{tracerProvider: tracerProvider, tracer: tracerProvider.Tracer(serviceName)}
	}
	meterProvider := metric.NewMeterProvider(metric.WithReader(exporter))

	if o.setGlobal {
		otel.SetMeterProvider(meterProvider)
		otel.SetTracerProvider(tracerProvider)
	}

	meter := meterProvider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	mutationCounter, _ := meter.Int64Counter(
		"board.status_writes",
		otelmetric.WithDescription("Status writes settled, by outcome"),
	)
	mutationDuration, _ := meter.Float64Histogram(
		"board.status_write.duration",
		otelmetric.WithDescription("Latency from enqueue to settlement of a status write"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:    meterProvider,
		tracerProvider:   tracerProvider,
		tracer:           tracerProvider.Tracer(serviceName),
		jobCounter:       jobCounter,
		jobDuration:      jobDuration,
		mutationCounter:  mutationCounter,
		mutationDuration: mutationDuration,
	}
}

// StartSpan starts a child span of ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordStatusWrite records one settled status write. outcome is confirmed, failed or superseded.
func (o *Observability) RecordStatusWrite(ctx context.Context, duration time.Duration, outcome string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.mutationCounter != nil {
		o.mutationCounter.Add(ctx, 1, attrs)
	}
	if o.mutationDuration != nil {
		o.mutationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
