package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/tom2tomtomtom/Playbook/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Stdout)
	assert.False(t, cfg.OTEL)
	assert.Equal(t, time.Second, cfg.Sampling.Tick)
	assert.Contains(t, cfg.RedactKeys, "api_key")
	assert.Equal(t, "playbook", cfg.Fields["service"])
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"no outputs", func(c *Config) { c.Stdout = false }, "output"},
		{"negative sampling", func(c *Config) { c.Sampling.Thereafter = -1 }, "sampling counts"},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "tick"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "constant field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate_SamplingDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling = Sampling{}
	assert.NoError(t, cfg.Validate())
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "DEBUG", Format: "console", OTEL: true})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.OTEL)
	assert.True(t, cfg.Stdout)

	cfg, err = FromSettings(config.LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = FromSettings(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}
