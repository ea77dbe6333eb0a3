package fixture

import (
	"errors"
	"fmt"

	"github.com/giantswarm/microerror"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

// Check compiles every pattern a suite uses, in expected headers and in
// expected body leaves, so broken fixtures surface before any request is
// sent. All problems are returned joined.
func Check(suite *Suite) error {
	var errs []error

	for _, c := range suite.Cases {
		for name, v := range c.Expect.Headers {
			if !v.IsPattern() {
				continue
			}
			if _, err := pattern.Compile(v.Text); err != nil {
				errs = append(errs, fmt.Errorf("case %q: header %q: %w", c.Name, name, err))
			}
		}

		if !c.Expect.HasBody() {
			continue
		}
		if !gjson.ValidBytes(c.Expect.body) {
			errs = append(errs, fmt.Errorf("case %q: %w", c.Name, microerror.Maskf(invalidFixtureError, "expected body is not valid JSON")))
			continue
		}
		walkStrings(gjson.ParseBytes(c.Expect.body), "", func(path, s string) {
			if !pattern.IsDirective(s) {
				return
			}
			if _, err := pattern.Compile(s[len(pattern.Prefix):]); err != nil {
				if path == "" {
					path = "$"
				}
				errs = append(errs, fmt.Errorf("case %q: body %s: %w", c.Name, path, err))
			}
		})
	}

	return errors.Join(errs...)
}

// walkStrings visits every string leaf with a gjson path to it.
func walkStrings(r gjson.Result, path string, visit func(path, s string)) {
	switch {
	case r.IsObject() || r.IsArray():
		i := 0
		array := r.IsArray()
		r.ForEach(func(key, value gjson.Result) bool {
			child := key.String()
			if array {
				child = fmt.Sprintf("%d", i)
			}
			i++
			if path != "" {
				child = path + "." + child
			}
			walkStrings(value, child, visit)
			return true
		})
	case r.Type == gjson.String:
		visit(path, r.Str)
	}
}
