// Package telemetry sets up OpenTelemetry tracing, metrics and log export
// over OTLP for playbookd.
//
// When disabled, or when an exporter cannot be built, the global no-op
// providers stay in place and the service keeps running; Health reports
// the degradation.
package telemetry
