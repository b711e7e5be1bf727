package search

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sequence is a flat search sequence that can be decoded from YAML.
//
// Each element is either a bare connective (AND / OR) or a single-key
// mapping:
//
//	- term: {key: environment, op: "=", value: production}
//	- OR
//	- group:
//	    - term: {key: "tags[browser]", op: IN, value: [chrome, firefox]}
//	- aggregate: {key: count(), op: ">", value: 5}
//
// Term values may be strings, string lists, integers, floats or YAML
// timestamps. A term may also carry `datetime: <RFC3339>` instead of value,
// and `tag: true` to force tag semantics on a bare name.
type Sequence []Item

// DecodeYAML parses a YAML (or JSON) search sequence.
func DecodeYAML(data []byte) (Sequence, error) {
	var seq Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Sequence) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: search sequence must be a list", node.Line)
	}
	items := make(Sequence, 0, len(node.Content))
	for _, child := range node.Content {
		item, err := decodeItem(child)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	*s = items
	return nil
}

func decodeItem(node *yaml.Node) (Item, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch strings.ToUpper(node.Value) {
		case string(And):
			return And, nil
		case string(Or):
			return Or, nil
		}
		return nil, fmt.Errorf("line %d: unknown connective %q", node.Line, node.Value)
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: search item must be a connective or a mapping", node.Line)
	}

	if len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: search item must have exactly one of term, aggregate or group", node.Line)
	}
	kind, body := node.Content[0].Value, node.Content[1]

	switch kind {
	case "term":
		key, op, val, err := decodeTermBody(body)
		if err != nil {
			return nil, err
		}
		return Term{Key: key, Operator: op, Value: val}, nil
	case "aggregate":
		key, op, val, err := decodeTermBody(body)
		if err != nil {
			return nil, err
		}
		return AggregateTerm{Key: key, Operator: op, Value: val}, nil
	case "group":
		var children Sequence
		if body.Kind == yaml.ScalarNode && body.ShortTag() == "!!null" {
			return Group{Children: []Item{}}, nil
		}
		if err := children.UnmarshalYAML(body); err != nil {
			return nil, err
		}
		return Group{Children: children}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown search item %q", node.Line, kind)
	}
}

type rawTerm struct {
	Key      string    `yaml:"key"`
	Tag      bool      `yaml:"tag"`
	Op       string    `yaml:"op"`
	Value    yaml.Node `yaml:"value"`
	Datetime string    `yaml:"datetime"`
}

func decodeTermBody(body *yaml.Node) (Key, Operator, Value, error) {
	var raw rawTerm
	if err := body.Decode(&raw); err != nil {
		return Key{}, "", Value{}, err
	}
	if raw.Key == "" {
		return Key{}, "", Value{}, fmt.Errorf("line %d: term is missing key", body.Line)
	}

	key := NewKey(raw.Key)
	if raw.Tag {
		key.IsTag = true
	}

	op := OpEquals
	if raw.Op != "" {
		op = Operator(strings.ToUpper(raw.Op))
	}
	if !op.Valid() {
		return Key{}, "", Value{}, fmt.Errorf("line %d: unsupported operator %q", body.Line, raw.Op)
	}

	if raw.Datetime != "" {
		t, err := time.Parse(time.RFC3339Nano, raw.Datetime)
		if err != nil {
			return Key{}, "", Value{}, fmt.Errorf("line %d: invalid datetime: %w", body.Line, err)
		}
		return key, op, Time(t), nil
	}

	val, err := decodeValue(&raw.Value)
	if err != nil {
		return Key{}, "", Value{}, fmt.Errorf("line %d: %w", body.Line, err)
	}
	return key, op, val, nil
}

func decodeValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case 0:
		return Value{}, fmt.Errorf("term is missing value")
	case yaml.SequenceNode:
		var vals []string
		if err := node.Decode(&vals); err != nil {
			return Value{}, err
		}
		return List(vals...), nil
	case yaml.ScalarNode:
	default:
		return Value{}, fmt.Errorf("unsupported value kind")
	}

	switch node.ShortTag() {
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return Value{}, err
		}
		return Int(n), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case "!!timestamp":
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return Value{}, err
		}
		return Time(t), nil
	case "!!null":
		return String(""), nil
	default:
		return String(node.Value), nil
	}
}
