package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Telemetry owns the SDK providers and shuts them down together.
type Telemetry struct {
	config *Config

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider

	mu       sync.Mutex
	problems []string
}

// HealthStatus reports whether every configured provider came up.
type HealthStatus struct {
	Enabled  bool
	Degraded bool
	Problems []string
}

// Option overrides exporter construction.
type Option func(*exporters)

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(e *exporters) {
		e.span = func(context.Context) (sdktrace.SpanExporter, error) { return exp, nil }
	}
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(e *exporters) {
		e.metric = func(context.Context) (sdkmetric.Exporter, error) { return exp, nil }
	}
}

// WithLogExporter replaces the OTLP log exporter.
func WithLogExporter(exp sdklog.Exporter) Option {
	return func(e *exporters) {
		e.log = func(context.Context) (sdklog.Exporter, error) { return exp, nil }
	}
}

// New validates cfg and installs global tracer and meter providers. An
// exporter that fails to build leaves its signal on the no-op provider and
// marks the instance degraded; only an invalid config is an error.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	exp := otlpExporters(cfg)
	for _, opt := range opts {
		opt(&exp)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	if se, err := exp.span(ctx); err != nil {
		t.degrade("traces: %v", err)
	} else {
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(se),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		)
		otel.SetTracerProvider(t.tracerProvider)
	}

	if me, err := exp.metric(ctx); err != nil {
		t.degrade("metrics: %v", err)
	} else {
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(me, sdkmetric.WithInterval(cfg.MetricInterval))),
		)
		otel.SetMeterProvider(t.meterProvider)
	}

	if le, err := exp.log(ctx); err != nil {
		t.degrade("logs: %v", err)
	} else {
		t.loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(le)),
		)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

func (t *Telemetry) degrade(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.problems = append(t.problems, fmt.Sprintf(format, args...))
}

// LoggerProvider returns the OTLP log provider, or nil when logs are not
// exported.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// Health reports the outcome of New.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Enabled:  t.config.Enabled,
		Degraded: len(t.problems) > 0,
		Problems: append([]string(nil), t.problems...),
	}
}

// ForceFlush exports everything buffered by the providers without stopping
// them.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.loggerProvider != nil {
		if err := t.loggerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every provider. Without a deadline on ctx,
// the configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
