package pattern

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/giantswarm/microerror"
	"gopkg.in/yaml.v3"
)

// Prefix marks an expected value as a regular expression.
const Prefix = "matchesPattern:"

type Kind int

const (
	KindLiteral Kind = iota
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindPattern:
		return "pattern"
	default:
		return "literal"
	}
}

// Value is an expected value descriptor: either a literal or a pattern.
// For patterns Text holds the regular expression without Prefix.
type Value struct {
	Kind Kind
	Text string
}

func Literal(s string) Value {
	return Value{Kind: KindLiteral, Text: s}
}

func Pattern(src string) Value {
	return Value{Kind: KindPattern, Text: src}
}

// IsDirective reports whether s uses the textual pattern convention.
func IsDirective(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Parse classifies a fixture string. Only the leading Prefix is removed;
// later occurrences of the token are part of the expression.
func Parse(s string) Value {
	if IsDirective(s) {
		return Pattern(s[len(Prefix):])
	}
	return Literal(s)
}

func (v Value) IsPattern() bool {
	return v.Kind == KindPattern
}

// String returns the value in its textual fixture form.
func (v Value) String() string {
	if v.IsPattern() {
		return Prefix + v.Text
	}
	return v.Text
}

// Match compares actual against the descriptor. Literals use string
// equality, patterns a full-string match. The only error is a pattern that
// does not compile.
func (v Value) Match(actual string) (bool, error) {
	if !v.IsPattern() {
		return v.Text == actual, nil
	}
	re, err := Compile(v.Text)
	if err != nil {
		return false, microerror.Mask(err)
	}
	return re.MatchString(actual), nil
}

// Compile compiles src anchored at both ends, so the expression has to
// match the entire input rather than a substring of it.
func Compile(src string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(src); err != nil {
		return nil, microerror.Maskf(invalidPatternError, "%#q: %s", src, err.Error())
	}
	re, err := regexp.Compile(`^(?:` + src + `)$`)
	if err != nil {
		return nil, microerror.Maskf(invalidPatternError, "%#q: %s", src, err.Error())
	}
	return re, nil
}

// structured is the tagged-union fixture form: exactly one field is set.
type structured struct {
	Pattern *string `yaml:"pattern" json:"pattern"`
	Value   *string `yaml:"value" json:"value"`
}

func (s structured) toValue() (Value, error) {
	switch {
	case s.Pattern != nil && s.Value != nil:
		return Value{}, microerror.Maskf(invalidDescriptorError, "descriptor sets both pattern and value")
	case s.Pattern != nil:
		return Pattern(*s.Pattern), nil
	case s.Value != nil:
		return Literal(*s.Value), nil
	default:
		return Value{}, microerror.Maskf(invalidDescriptorError, "descriptor needs a pattern or a value")
	}
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = Literal("")
			return nil
		}
		*v = Parse(node.Value)
		return nil
	case yaml.MappingNode:
		var s structured
		if err := node.Decode(&s); err != nil {
			return microerror.Mask(err)
		}
		parsed, err := s.toValue()
		if err != nil {
			return microerror.Mask(err)
		}
		*v = parsed
		return nil
	default:
		return microerror.Maskf(invalidDescriptorError, "line %d: expected a string or a {pattern|value} mapping", node.Line)
	}
}

func (v Value) MarshalYAML() (any, error) {
	return v.String(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Literal("")
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return microerror.Mask(err)
		}
		*v = Parse(s)
	case data[0] == '{':
		var s structured
		if err := json.Unmarshal(data, &s); err != nil {
			return microerror.Mask(err)
		}
		parsed, err := s.toValue()
		if err != nil {
			return microerror.Mask(err)
		}
		*v = parsed
	case data[0] == '[':
		return microerror.Maskf(invalidDescriptorError, "expected a string or a {pattern|value} object, got an array")
	default:
		// numbers and booleans are literals compared by their printed form
		*v = Literal(string(data))
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}
