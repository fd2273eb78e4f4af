package render

import (
	"encoding/json"
	"fmt"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"gopkg.in/yaml.v3"
)

// toNode builds a yaml.Node tree from a normalized value.
func toNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case *ordered.Map:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, p := range x.Pairs() {
			val, err := toNode(p.Value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", p.Key, err)
			}
			node.Content = append(node.Content, scalar(p.Key), val)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			val, err := toNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, val)
		}
		return node, nil
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: x.String()}, nil
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: x.String()}, nil
	case nil, bool, string, int64, float64:
		node := &yaml.Node{}
		if err := node.Encode(x); err != nil {
			return nil, err
		}
		return node, nil
	}
	return nil, fmt.Errorf("%w: %T was not normalized", ErrUnsupportedValue, v)
}

func scalar(s string) *yaml.Node {
	node := &yaml.Node{}
	// Encoding a string cannot fail.
	_ = node.Encode(s)
	return node
}
