package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exporters builds the three OTLP exporters for one protocol.
type exporters struct {
	span   func(context.Context) (sdktrace.SpanExporter, error)
	metric func(context.Context) (sdkmetric.Exporter, error)
	log    func(context.Context) (sdklog.Exporter, error)
}

// cumulative keeps counters Prometheus-compatible downstream.
func cumulative(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func otlpExporters(cfg *Config) exporters {
	endpoint := stripScheme(cfg.Endpoint)

	if cfg.Protocol == ProtocolHTTP {
		return exporters{
			span: func(ctx context.Context) (sdktrace.SpanExporter, error) {
				opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
				if cfg.Insecure {
					opts = append(opts, otlptracehttp.WithInsecure())
				}
				return otlptracehttp.New(ctx, opts...)
			},
			metric: func(ctx context.Context) (sdkmetric.Exporter, error) {
				opts := []otlpmetrichttp.Option{
					otlpmetrichttp.WithEndpoint(endpoint),
					otlpmetrichttp.WithTemporalitySelector(cumulative),
				}
				if cfg.Insecure {
					opts = append(opts, otlpmetrichttp.WithInsecure())
				}
				return otlpmetrichttp.New(ctx, opts...)
			},
			log: func(ctx context.Context) (sdklog.Exporter, error) {
				opts := []otlploghttp.Option{otlploghttp.WithEndpoint(endpoint)}
				if cfg.Insecure {
					opts = append(opts, otlploghttp.WithInsecure())
				}
				return otlploghttp.New(ctx, opts...)
			},
		}
	}

	return exporters{
		span: func(ctx context.Context) (sdktrace.SpanExporter, error) {
			opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
			if cfg.Insecure {
				opts = append(opts, otlptracegrpc.WithInsecure())
			}
			return otlptracegrpc.New(ctx, opts...)
		},
		metric: func(ctx context.Context) (sdkmetric.Exporter, error) {
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpoint(endpoint),
				otlpmetricgrpc.WithTemporalitySelector(cumulative),
			}
			if cfg.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}
			return otlpmetricgrpc.New(ctx, opts...)
		},
		log: func(ctx context.Context) (sdklog.Exporter, error) {
			opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(endpoint)}
			if cfg.Insecure {
				opts = append(opts, otlploggrpc.WithInsecure())
			}
			return otlploggrpc.New(ctx, opts...)
		},
	}
}
