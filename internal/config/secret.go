package config

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// Secret holds a credential such as the price feed API key. Every printing and
// marshaling path redacts it; only Reveal returns the value.
type Secret string

func (s Secret) redact() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string { return s.redact() }

// GoString keeps %#v redacted
func (s Secret) GoString() string { return `"` + s.redact() + `"` }

// Reveal returns the underlying value
func (s Secret) Reveal() string {
	return string(s)
}

// IsSet reports whether a non-empty value was configured
func (s Secret) IsSet() bool {
	return s != ""
}

// Hint identifies which key is configured without exposing it: the last four
// characters behind a mask, or only the mask for short keys.
func (s Secret) Hint() string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + string(s[len(s)-4:])
	}
}

// UnmarshalYAML trims whitespace that env expansion and .env files tend to leave around keys
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Secret(strings.TrimSpace(raw))
	return nil
}

func (s Secret) MarshalYAML() (interface{}, error) {
	return s.redact(), nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.redact())
}
