package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger whose methods take a context and log its
// correlation fields.
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a Logger. provider may be nil, in which case cfg.OTEL
// is ignored.
func NewLogger(cfg *Config, provider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var cores []zapcore.Core
	if cfg.Stdout {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stdout), cfg.Level))
	}
	if cfg.OTEL && provider != nil {
		otelCore, err := zapcore.NewIncreaseLevelCore(
			otelzap.NewCore("playbook", otelzap.WithLoggerProvider(provider)), cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("otel core: %w", err)
		}
		cores = append(cores, otelCore)
	}
	if len(cores) == 0 {
		return nil, errors.New("no log output available")
	}

	core := newRedactingCore(zapcore.NewTee(cores...), cfg.RedactKeys)
	core = sample(core, cfg.Sampling)

	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	for k, v := range cfg.Fields {
		z = z.With(zap.String(k, v))
	}
	return &Logger{zap: z}, nil
}

// New wraps an existing zap logger.
func New(z *zap.Logger) *Logger {
	return &Logger{zap: z}
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// sample applies s to entries below error. Errors always pass.
func sample(core zapcore.Core, s Sampling) zapcore.Core {
	if s.Initial == 0 {
		return core
	}
	low := &levelRange{Core: core, max: zapcore.WarnLevel}
	high := &levelRange{Core: core, min: zapcore.ErrorLevel}
	return zapcore.NewTee(zapcore.NewSamplerWithOptions(low, s.Tick, s.Initial, s.Thereafter), high)
}

// levelRange limits a core to [min, max]. Zero (InfoLevel) leaves that
// side unbounded.
type levelRange struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelRange) Enabled(l zapcore.Level) bool {
	if c.min != 0 && l < c.min {
		return false
	}
	if c.max != 0 && l > c.max {
		return false
	}
	return c.Core.Enabled(l)
}

func (c *levelRange) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelRange) With(fields []zapcore.Field) zapcore.Core {
	return &levelRange{Core: c.Core.With(fields), min: c.min, max: c.max}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

// Named returns a child logger with name appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Sync flushes buffered entries. EINVAL and ENOTTY from syncing a
// terminal are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}

// Underlying returns the zap logger for packages that take *zap.Logger.
// Its entries skip one extra caller frame.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap.WithOptions(zap.AddCallerSkip(-1))
}
