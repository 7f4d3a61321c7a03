package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/tom2tomtomtom/Playbook/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level
	Format string // json or console

	Stdout bool
	OTEL   bool

	// Sampling applies to entries below error. Zero Initial disables it.
	Sampling Sampling

	// RedactKeys are field names whose values are always masked.
	RedactKeys []string

	// Fields are attached to every entry.
	Fields map[string]string
}

// Sampling mirrors zapcore.NewSamplerWithOptions: per Tick, the first
// Initial entries with the same message pass, then every Thereafter-th.
type Sampling struct {
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// DefaultRedactKeys covers request bodies and provider settings.
var DefaultRedactKeys = []string{
	"api_key", "apikey", "authorization", "password", "secret", "token",
}

// NewDefaultConfig returns JSON logs at info to stdout.
func NewDefaultConfig() *Config {
	return &Config{
		Level:      zapcore.InfoLevel,
		Format:     "json",
		Stdout:     true,
		Sampling:   Sampling{Tick: time.Second, Initial: 100, Thereafter: 10},
		RedactKeys: DefaultRedactKeys,
		Fields:     map[string]string{"service": "playbook"},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Initial < 0 || c.Sampling.Thereafter < 0 {
		return fmt.Errorf("sampling counts must be >= 0")
	}
	if c.Sampling.Initial > 0 && c.Sampling.Tick <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q must have a non-empty key and value", k)
		}
	}
	return nil
}

// FromSettings builds a Config from the logging section of the
// application config.
func FromSettings(s config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if s.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(s.Level))); err != nil {
			return nil, fmt.Errorf("logging level: %w", err)
		}
		cfg.Level = lvl
	}
	if s.Format != "" {
		cfg.Format = s.Format
	}
	cfg.OTEL = s.OTEL
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
