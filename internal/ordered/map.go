// Package ordered provides a string-keyed map that remembers first-insertion order.
//
// Go maps carry no order, so every mapping that ends up in a rendered document goes
// through a Map. Overwriting a key keeps its original position.
package ordered

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Map is an insertion-ordered map. The zero value is not usable; call New.
type Map struct {
	keys   []string
	values map[string]any
}

// Pair is a single key/value entry of a Map.
type Pair struct {
	Key   string
	Value any
}

// New returns an empty map.
func New() *Map {
	return &Map{values: make(map[string]any)}
}

// Of builds a map from alternating key/value arguments.
// It panics if a key is not a string or the argument count is odd, like regexp.MustCompile
// it is meant for literals in code.
func Of(kv ...any) *Map {
	if len(kv)%2 != 0 {
		panic("ordered.Of: odd number of arguments")
	}
	m := New()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ordered.Of: key at %d is %T, not string", i, kv[i]))
		}
		m.Set(k, kv[i+1])
	}
	return m
}

// Set stores value under key and returns m so literals can be chained.
func (m *Map) Set(key string, value any) *Map {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Pairs returns the entries in insertion order.
func (m *Map) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Pair{Key: k, Value: m.values[k]})
	}
	return out
}

// Clone returns a shallow copy.
func (m *Map) Clone() *Map {
	c := New()
	if m == nil {
		return c
	}
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}

// MarshalJSON writes the entries in insertion order. Values are not HTML
// escaped when the method is called directly; json.Marshal escapes the result again.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalNoEscape(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalYAML emits a mapping node so yaml.v3 keeps the key order.
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		key := &yaml.Node{}
		if err := key.Encode(k); err != nil {
			return nil, err
		}
		val := &yaml.Node{}
		if err := val.Encode(m.values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping node, turning nested mappings into *Map and
// sequences into []any so the source order survives.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	v, err := FromNode(node)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	*m = *decoded
	return nil
}

// ErrExcessiveAliasing reports a document whose aliases expand far beyond its size.
var ErrExcessiveAliasing = errors.New("document contains excessive aliasing")

// FromNode converts a decoded yaml node into plain values, using *Map for mappings.
// Aliases are expanded under the same ratio limit yaml.v3 applies when decoding.
func FromNode(node *yaml.Node) (any, error) {
	d := &nodeDecoder{expanding: make(map[*yaml.Node]bool)}
	return d.decode(node)
}

type nodeDecoder struct {
	decoded    int
	aliased    int
	aliasDepth int
	expanding  map[*yaml.Node]bool
}

// allowedAliasRatio shrinks the share of alias-expanded nodes as documents grow.
func allowedAliasRatio(decoded int) float64 {
	switch {
	case decoded <= 400_000:
		return 0.99
	case decoded >= 4_000_000:
		return 0.10
	default:
		return 0.99 - 0.89*(float64(decoded-400_000)/3_600_000)
	}
}

func (d *nodeDecoder) decode(node *yaml.Node) (any, error) {
	d.decoded++
	if d.aliasDepth > 0 {
		d.aliased++
	}
	if d.aliased > 100 && d.decoded > 1000 && float64(d.aliased)/float64(d.decoded) > allowedAliasRatio(d.decoded) {
		return nil, fmt.Errorf("line %d: %w", node.Line, ErrExcessiveAliasing)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return d.decode(node.Content[0])
	case yaml.AliasNode:
		if d.expanding[node.Alias] {
			return nil, fmt.Errorf("line %d: anchor %q value contains itself", node.Line, node.Value)
		}
		d.expanding[node.Alias] = true
		d.aliasDepth++
		v, err := d.decode(node.Alias)
		d.aliasDepth--
		delete(d.expanding, node.Alias)
		return v, err
	case yaml.MappingNode:
		out := New()
		for i := 0; i+1 < len(node.Content); i += 2 {
			k := node.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", k.Line)
			}
			if k.Tag == "!!merge" {
				return nil, fmt.Errorf("line %d: merge keys are not supported", k.Line)
			}
			v, err := d.decode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(k.Value, v)
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := d.decode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
}

// Decode parses YAML (or JSON, which is a subset) into plain values with *Map mappings.
func Decode(data []byte) (any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return nil, nil
	}
	return FromNode(&node)
}
