package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type memMetricExporter struct {
	mu      sync.Mutex
	exports int
}

func (e *memMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return cumulative(k)
}

func (e *memMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *memMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports++
	return nil
}

func (e *memMetricExporter) ForceFlush(context.Context) error { return nil }
func (e *memMetricExporter) Shutdown(context.Context) error   { return nil }

type memLogExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memLogExporter) ForceFlush(context.Context) error { return nil }
func (e *memLogExporter) Shutdown(context.Context) error   { return nil }

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.Nil(t, tel.LoggerProvider())
	h := tel.Health()
	assert.False(t, h.Enabled)
	assert.False(t, h.Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := enabledConfig()
	cfg.SampleRate = 2
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_ExportsAllSignals(t *testing.T) {
	spans := tracetest.NewInMemoryExporter()
	metrics := &memMetricExporter{}
	logs := &memLogExporter{}

	cfg := enabledConfig()
	cfg.ServiceVersion = "1.2.3"
	tel, err := New(context.Background(), cfg,
		WithSpanExporter(spans), WithMetricExporter(metrics), WithLogExporter(logs))
	require.NoError(t, err)
	assert.False(t, tel.Health().Degraded)
	require.NotNil(t, tel.LoggerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "Index.AddDocument")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("playbook.test.calls")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	// The in-memory span exporter drops its spans on shutdown, so read them
	// after a flush.
	require.NoError(t, tel.ForceFlush(context.Background()))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "Index.AddDocument", got[0].Name)

	var service, version string
	for _, kv := range got[0].Resource.Attributes() {
		switch kv.Key {
		case "service.name":
			service = kv.Value.AsString()
		case "service.version":
			version = kv.Value.AsString()
		}
	}
	assert.Equal(t, "playbook", service)
	assert.Equal(t, "1.2.3", version)

	metrics.mu.Lock()
	assert.Positive(t, metrics.exports)
	metrics.mu.Unlock()

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Empty(t, spans.GetSpans())
}

func TestForceFlush_NilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.ForceFlush(context.Background()))
}

func TestNew_SampleRateZeroDropsRootSpans(t *testing.T) {
	spans := tracetest.NewInMemoryExporter()
	cfg := enabledConfig()
	cfg.SampleRate = 0

	tel, err := New(context.Background(), cfg,
		WithSpanExporter(spans), WithMetricExporter(&memMetricExporter{}), WithLogExporter(&memLogExporter{}))
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	assert.Empty(t, spans.GetSpans())
}

func TestNew_ExporterFailureDegrades(t *testing.T) {
	failLogs := func(e *exporters) {
		e.log = func(context.Context) (sdklog.Exporter, error) { return nil, errors.New("collector unreachable") }
	}

	tel, err := New(context.Background(), enabledConfig(),
		WithSpanExporter(tracetest.NewInMemoryExporter()), WithMetricExporter(&memMetricExporter{}), failLogs)
	require.NoError(t, err)

	h := tel.Health()
	assert.True(t, h.Enabled)
	assert.True(t, h.Degraded)
	require.Len(t, h.Problems, 1)
	assert.Contains(t, h.Problems[0], "logs")
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestShutdown_Nil(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Nil(t, tel.LoggerProvider())
}

var _ sdktrace.SpanExporter = (*tracetest.InMemoryExporter)(nil)
