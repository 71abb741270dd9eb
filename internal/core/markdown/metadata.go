package markdown

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMalformedMetadata is returned when the front matter is not a YAML mapping.
var ErrMalformedMetadata = errors.New("malformed metadata block")

// Metadata is a decoded front matter mapping. Scalar values keep their literal
// text so that values like "007" are never reinterpreted as numbers.
type Metadata struct {
	keys   []string
	values map[string]*yaml.Node
}

// ParseMetadata decodes front matter text into a Metadata. An empty block is
// valid and yields no keys.
func ParseMetadata(text string) (Metadata, error) {
	md := Metadata{values: map[string]*yaml.Node{}}
	if strings.TrimSpace(text) == "" {
		return md, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	}
	if len(doc.Content) == 0 {
		return md, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Metadata{}, fmt.Errorf("%w: expected key/value mapping", ErrMalformedMetadata)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if _, dup := md.values[key]; dup {
			return Metadata{}, fmt.Errorf("%w: duplicate key %q", ErrMalformedMetadata, key)
		}
		md.keys = append(md.keys, key)
		md.values[key] = root.Content[i+1]
	}

	return md, nil
}

// Keys returns the keys in file order.
func (m Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// String returns the scalar text of key. Null values read as empty.
func (m Metadata) String(key string) (string, bool, error) {
	n, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", true, fmt.Errorf("%s: expected a scalar value", key)
	}
	if n.Tag == "!!null" {
		return "", true, nil
	}
	return strings.TrimSpace(n.Value), true, nil
}

// Strings returns a sequence of scalars. A single scalar is accepted as a
// one-element list and a comma separated scalar is split.
func (m Metadata) Strings(key string) ([]string, error) {
	n, ok := m.values[key]
	if !ok {
		return nil, nil
	}

	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%s: expected a list of scalars", key)
			}
			if v := strings.TrimSpace(c.Value); v != "" {
				out = append(out, v)
			}
		}
		return out, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		var out []string
		for _, part := range strings.Split(n.Value, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected a list", key)
	}
}

// Int returns key parsed as a base-10 integer.
func (m Metadata) Int(key string) (int, bool, error) {
	s, ok, err := m.String(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %q is not an integer", key, s)
	}
	return v, true, nil
}

// Bool returns key parsed as a boolean.
func (m Metadata) Bool(key string) (bool, bool, error) {
	s, ok, err := m.String(key)
	if err != nil || !ok || s == "" {
		return false, ok, err
	}
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true, true, nil
	case "false", "no", "off":
		return false, true, nil
	}
	return false, true, fmt.Errorf("%s: %q is not a boolean", key, s)
}

// Time returns key parsed as an RFC 3339 timestamp.
func (m Metadata) Time(key string) (*time.Time, error) {
	s, ok, err := m.String(key)
	if err != nil || !ok || s == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an RFC 3339 timestamp", key, s)
	}
	return &t, nil
}
