package capture

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitmatch/packages/http"
)

const (
	SourceStatus   = "status"
	SourceDuration = "duration"
	SourceBody     = "body"
	// SourceHeader prefixes a header name, as in "header:Location".
	SourceHeader = "header:"
)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

// Extract resolves one capture source. Anything that is not status,
// duration, body or header:Name is a path into the JSON body, written
// either as gjson (data.0.id) or with brackets (data[0].id).
func (e *Extractor) Extract(source string) (any, bool) {
	source = strings.TrimSpace(source)
	switch {
	case source == SourceStatus:
		return e.response.StatusCode, true
	case source == SourceDuration:
		return e.response.DurationMs(), true
	case strings.HasPrefix(source, SourceHeader):
		return e.extractFromHeader(strings.TrimPrefix(source, SourceHeader))
	case source == SourceBody:
		return e.extractFromBody("")
	default:
		return e.extractFromBody(Path(source))
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(strings.TrimSpace(name))
	if value == "" {
		return nil, false
	}
	return value, true
}

// Path converts a bracketed path such as $.data[0].id into gjson syntax.
func Path(p string) string {
	p = strings.TrimPrefix(p, "$")
	p = strings.TrimPrefix(p, ".")
	p = indexPattern.ReplaceAllStringFunc(p, func(m string) string {
		n, _ := strconv.Atoi(m[1 : len(m)-1])
		return "." + strconv.Itoa(n)
	})
	return strings.TrimPrefix(p, ".")
}

// ExtractAll resolves every named source and returns the values found.
// Sources that resolve to nothing are left out.
func ExtractAll(resp *http.Response, sources map[string]string) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for name, source := range sources {
		if value, ok := extractor.Extract(source); ok {
			results[name] = value
		}
	}

	return results
}
