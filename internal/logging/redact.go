package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// credentialPatterns match provider keys and auth headers inside free text.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{30,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`),
}

// redactingCore masks sensitive fields before they reach the wrapped core.
type redactingCore struct {
	zapcore.Core
	keys map[string]struct{}
}

func newRedactingCore(core zapcore.Core, keys []string) zapcore.Core {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return &redactingCore{Core: core, keys: set}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.redact(fields)), keys: c.keys}
}

func (c *redactingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *redactingCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	e.Message = RedactText(e.Message)
	return c.Core.Write(e, c.redact(fields))
}

func (c *redactingCore) redact(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case c.sensitive(f.Key):
			out[i] = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: redacted}
		case f.Type == zapcore.StringType:
			f.String = RedactText(f.String)
			out[i] = f
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				if msg := RedactText(err.Error()); msg != err.Error() {
					out[i] = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: msg}
					continue
				}
			}
			out[i] = f
		default:
			out[i] = f
		}
	}
	return out
}

func (c *redactingCore) sensitive(key string) bool {
	_, ok := c.keys[strings.ToLower(key)]
	return ok
}

// RedactText masks anything in s that looks like an API key or bearer token.
func RedactText(s string) string {
	for _, re := range credentialPatterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}
