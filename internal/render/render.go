// Package render turns document values into their JSON and YAML serializations.
//
// Everything goes through Normalize first, which reduces arbitrary model values
// to a small closed set of types and catches anything that cannot be serialized
// deterministically. Both encoders then walk the same normalized value, so the
// two formats always agree on content and key order.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"gopkg.in/yaml.v3"
)

// Format selects an output serialization.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the HTTP media type for the format.
func (f Format) ContentType() string {
	if f == YAML {
		return "application/yaml"
	}
	return "application/json"
}

// ErrUnsupportedValue is wrapped by Error for values with no serialization.
var ErrUnsupportedValue = errors.New("unsupported value")

// ErrCycle is wrapped by Error when a map or slice contains itself.
var ErrCycle = errors.New("cyclic reference")

// Error reports a value that cannot be rendered.
type Error struct {
	Key  string // top-level document key
	Path string // JSONPath of the offending node
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render %s at %s: %v", e.Key, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type options struct {
	indent string
}

// Option adjusts encoding.
type Option func(*options)

// WithIndent pretty-prints JSON output using the given indent string.
// YAML always uses two spaces.
func WithIndent(indent string) Option {
	return func(o *options) { o.indent = indent }
}

// Encode normalizes doc and serializes it in the given format.
func Encode(doc *ordered.Map, f Format, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	norm := ordered.New()
	for _, p := range doc.Pairs() {
		v, err := Normalize(p.Key, p.Value)
		if err != nil {
			return nil, err
		}
		norm.Set(p.Key, v)
	}

	switch f {
	case JSON:
		return encodeJSON(norm, o)
	case YAML:
		return encodeYAML(norm)
	}
	return nil, fmt.Errorf("unsupported format %q", f)
}

func encodeJSON(m *ordered.Map, o options) ([]byte, error) {
	out, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if o.indent == "" {
		return out, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, out, "", o.indent); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func encodeYAML(m *ordered.Map) ([]byte, error) {
	node, err := toNode(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
