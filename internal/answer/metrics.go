package answer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/tom2tomtomtom/Playbook/internal/answer"

// Metrics holds answer generation instruments.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	tokens     metric.Int64Counter
	cost       metric.Float64Counter
	confidence metric.Float64Histogram
	errors     metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for answer generation.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.tokens, err = m.meter.Int64Counter(
		"playbook.answer.tokens_total",
		metric.WithDescription("Language model tokens consumed, by model and kind"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		m.logger.Warn("failed to create tokens counter", zap.Error(err))
	}

	m.cost, err = m.meter.Float64Counter(
		"playbook.answer.cost_usd_total",
		metric.WithDescription("Estimated language model spend"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		m.logger.Warn("failed to create cost counter", zap.Error(err))
	}

	m.confidence, err = m.meter.Float64Histogram(
		"playbook.answer.confidence",
		metric.WithDescription("Confidence of generated answers"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create confidence histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"playbook.answer.generation_errors_total",
		metric.WithDescription("Completions that failed after retries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordUsage records tokens and cost of one completion.
func (m *Metrics) RecordUsage(ctx context.Context, model string, prompt, completion int, costMicros int64) {
	if m.tokens != nil {
		m.tokens.Add(ctx, int64(prompt), metric.WithAttributes(
			attribute.String("model", model), attribute.String("kind", "prompt")))
		m.tokens.Add(ctx, int64(completion), metric.WithAttributes(
			attribute.String("model", model), attribute.String("kind", "completion")))
	}
	if m.cost != nil {
		m.cost.Add(ctx, float64(costMicros)/1e6, metric.WithAttributes(attribute.String("model", model)))
	}
}

// RecordConfidence records an answer's confidence.
func (m *Metrics) RecordConfidence(ctx context.Context, c float64) {
	if m.confidence != nil {
		m.confidence.Record(ctx, c)
	}
}

// RecordError counts a failed generation.
func (m *Metrics) RecordError(ctx context.Context, model string) {
	if m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
	}
}
