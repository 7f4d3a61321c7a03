package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration read from strings such as "30s" in YAML and
// environment variables. Negative values are rejected.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.Duration().String()), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.Duration().String()) }

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Secret holds an API key. Every formatting and marshaling path prints
// "[REDACTED]"; only Value returns the key.
type Secret string

const redactedSecret = "[REDACTED]"

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redactedSecret
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "config.Secret(" + redactedSecret + ")" }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// Value returns the key itself.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a key was configured.
func (s Secret) IsSet() bool { return s != "" }
