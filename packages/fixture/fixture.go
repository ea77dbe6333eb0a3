package fixture

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/giantswarm/microerror"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

// Suite is one fixture file.
type Suite struct {
	// Path is the file the suite was loaded from.
	Path      string            `yaml:"-" json:"-"`
	Name      string            `yaml:"name,omitempty" json:"name,omitempty"`
	BaseURL   string            `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Variables map[string]any    `yaml:"variables,omitempty" json:"variables,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Cases     []*Case           `yaml:"cases" json:"cases"`
}

type Case struct {
	Name    string            `yaml:"name" json:"name"`
	Tags    []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Skip    bool              `yaml:"skip,omitempty" json:"skip,omitempty"`
	Request Request           `yaml:"request" json:"request"`
	Expect  Expect            `yaml:"expect" json:"expect"`
	Capture map[string]string `yaml:"capture,omitempty" json:"capture,omitempty"`
}

// HasTag reports whether the case carries any of tags. No tags matches all.
func (c *Case) HasTag(tags ...string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range c.Tags {
			if strings.EqualFold(strings.TrimSpace(want), have) {
				return true
			}
		}
	}
	return false
}

type Request struct {
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	// Body is sent as is when it is a string and as JSON otherwise.
	Body    yaml.Node `yaml:"body,omitempty" json:"-"`
	Timeout int       `yaml:"timeout,omitempty" json:"timeout,omitempty"` // milliseconds
}

// BodyText returns the request body and whether it was encoded as JSON.
func (r *Request) BodyText() (string, bool, error) {
	switch {
	case r.Body.Kind == 0:
		return "", false, nil
	case r.Body.Kind == yaml.ScalarNode && r.Body.ShortTag() == "!!str":
		return r.Body.Value, false, nil
	}
	data, err := nodeToJSON(&r.Body)
	if err != nil {
		return "", false, microerror.Mask(err)
	}
	return string(data), true, nil
}

// Expect is the oracle for one response. A zero Status, nil Headers and an
// absent Body each skip the corresponding check.
type Expect struct {
	Status     int                      `yaml:"status,omitempty" json:"status,omitempty"`
	StatusText string                   `yaml:"statusText,omitempty" json:"statusText,omitempty"`
	Headers    map[string]pattern.Value `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body       yaml.Node                `yaml:"body,omitempty" json:"-"`
	BodyFile   string                   `yaml:"bodyFile,omitempty" json:"bodyFile,omitempty"`
	// IgnoreArrayOrder overrides the run wide setting for this case.
	IgnoreArrayOrder *bool `yaml:"ignoreArrayOrder,omitempty" json:"ignoreArrayOrder,omitempty"`

	// body holds the expected JSON document once the loader resolved Body
	// or BodyFile.
	body []byte
}

// HasBody reports whether the case expects a body.
func (e *Expect) HasBody() bool {
	return e.body != nil
}

// BodyJSON returns the expected body as JSON, or nil when none is expected.
func (e *Expect) BodyJSON() []byte {
	return e.body
}

// SetBodyJSON replaces the expected body.
func (e *Expect) SetBodyJSON(data []byte) {
	e.body = data
}

// nodeToJSON converts a YAML value to compact JSON. A string holding a JSON
// object or array is taken verbatim so the key order of hand-written
// documents is kept.
func nodeToJSON(node *yaml.Node) ([]byte, error) {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" {
		trimmed := strings.TrimSpace(node.Value)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(trimmed) {
			return pretty.Ugly([]byte(trimmed)), nil
		}
	}

	var v any
	if err := node.Decode(&v); err != nil {
		return nil, microerror.Maskf(invalidFixtureError, "line %d: %s", node.Line, err.Error())
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, microerror.Maskf(invalidFixtureError, "line %d: body cannot be expressed as JSON: %s", node.Line, err.Error())
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// jsonToNode parses a JSON document into a YAML node for writing fixtures.
func jsonToNode(data []byte) (yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return yaml.Node{}, microerror.Mask(err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return *doc.Content[0], nil
	}
	return doc, nil
}
