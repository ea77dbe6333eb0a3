package fixture

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/microerror"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitmatch/packages/http"
	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

// HTTPDate matches the IMF-fixdate form used by Date, Expires and
// Last-Modified.
const HTTPDate = `[A-Za-z]{3}.\s\d{1,2}\s[A-Za-z]{3}\s\d{4}\s\d{2}:\d{2}:\d{2}\s[A-Z]{3}`

// volatileHeaders change on every response; recording writes a pattern for
// them instead of the observed value.
var volatileHeaders = map[string]string{
	"Age":            `\d+`,
	"Content-Length": `\d+`,
	"Date":           HTTPDate,
	"Expires":        HTTPDate,
	"Last-Modified":  HTTPDate,
	"Etag":           `.+`,
	"Cf-Ray":         `.+`,
	"X-Request-Id":   `.+`,
	"Report-To":      `.+`,
	"Nel":            `.+`,
}

// skippedHeaders are never recorded.
var skippedHeaders = map[string]bool{
	"Set-Cookie": true,
	"Alt-Svc":    true,
}

// FromResponse builds a case whose expectations are the given response:
// its status, its headers with volatile values turned into patterns, and
// its body when it is JSON.
func FromResponse(name string, req Request, resp *http.Response) (*Case, error) {
	c := &Case{
		Name:    name,
		Request: req,
		Expect: Expect{
			Status:  resp.StatusCode,
			Headers: make(map[string]pattern.Value, len(resp.Headers)),
		},
	}

	for k, v := range resp.Headers {
		if skippedHeaders[k] {
			continue
		}
		if src, ok := volatileHeaders[k]; ok {
			c.Expect.Headers[k] = pattern.Pattern(src)
			continue
		}
		c.Expect.Headers[k] = pattern.Literal(v)
	}

	if len(resp.Body) > 0 && gjson.ValidBytes(resp.Body) {
		node, err := jsonToNode(resp.Body)
		if err != nil {
			return nil, microerror.Mask(err)
		}
		blockStyle(&node)
		c.Expect.Body = node
		c.Expect.body = resp.Body
	}

	return c, nil
}

// SetBody sets the request body, as YAML structure when text is a JSON
// object or array and as a plain string otherwise.
func (r *Request) SetBody(text string) error {
	r.Body = yaml.Node{}
	if text == "" {
		return nil
	}
	trimmed := []byte(strings.TrimSpace(text))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && gjson.ValidBytes(trimmed) {
		node, err := jsonToNode(trimmed)
		if err != nil {
			return microerror.Mask(err)
		}
		blockStyle(&node)
		r.Body = node
		return nil
	}
	r.Body.SetString(text)
	return nil
}

// blockStyle drops the flow style JSON parsing leaves on containers so the
// recorded body is written as regular YAML.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style &^= yaml.FlowStyle
	}
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// Save writes the suite as YAML, creating parent directories.
func Save(suite *Suite, path string) error {
	data, err := yaml.Marshal(suite)
	if err != nil {
		return microerror.Mask(err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return microerror.Mask(err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return microerror.Mask(err)
	}
	return nil
}
