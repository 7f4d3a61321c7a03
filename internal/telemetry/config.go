package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tom2tomtomtom/Playbook/internal/config"
)

// Protocols accepted by Config.Protocol.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string // host:port of the OTLP collector
	Protocol       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string

	// SampleRate is the fraction of root traces kept, 0 to 1.
	SampleRate float64

	MetricInterval  time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns a disabled config pointing at a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		ServiceName:     "playbook",
		ServiceVersion:  "dev",
		SampleRate:      1.0,
		MetricInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks an enabled config. Plaintext export is only allowed to
// loopback collectors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when telemetry is enabled")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.Insecure && !isLoopback(c.Endpoint) {
		return fmt.Errorf("insecure export to non-local endpoint %q", c.Endpoint)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %g", c.SampleRate)
	}
	if c.MetricInterval <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("metric interval and shutdown timeout must be positive")
	}
	return nil
}

func isLoopback(endpoint string) bool {
	host := hostOf(endpoint)
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// hostOf strips an optional scheme and port.
func hostOf(endpoint string) string {
	endpoint = stripScheme(endpoint)
	if host, _, err := net.SplitHostPort(endpoint); err == nil {
		return host
	}
	return strings.Trim(endpoint, "[]")
}

// stripScheme removes http:// or https://; OTLP exporters take host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// FromSettings builds a Config from the telemetry section of the
// application config.
func FromSettings(s config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = s.Enabled
	cfg.Insecure = s.Insecure
	if s.Endpoint != "" {
		cfg.Endpoint = s.Endpoint
	}
	if s.ServiceName != "" {
		cfg.ServiceName = s.ServiceName
	}
	if s.Protocol != "" {
		cfg.Protocol = s.Protocol
	}
	if s.SampleRate > 0 {
		cfg.SampleRate = s.SampleRate
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}
