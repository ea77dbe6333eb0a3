package assertions

import (
	"fmt"
	"strings"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"

	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
	"github.com/abdul-hamid-achik/hitmatch/packages/headers"
	"github.com/abdul-hamid-achik/hitmatch/packages/http"
	"github.com/abdul-hamid-achik/hitmatch/packages/jsondiff"
)

type Options struct {
	// IgnoreArrayOrder compares JSON arrays as multisets unless the case
	// overrides it.
	IgnoreArrayOrder bool
	// FailOnStatus stops after a status mismatch without looking at headers
	// and body.
	FailOnStatus bool
}

type Config struct {
	Logger micrologger.Logger
}

// Evaluator is stateless between calls and safe for concurrent use.
type Evaluator struct {
	logger  micrologger.Logger
	headers *headers.Validator
	bodies  *jsondiff.Comparer
}

func New(config Config) (*Evaluator, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}

	var err error

	var headerValidator *headers.Validator
	{
		c := headers.Config{
			Logger: config.Logger,
		}

		headerValidator, err = headers.New(c)
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	var bodyComparer *jsondiff.Comparer
	{
		c := jsondiff.Config{
			Logger: config.Logger,
		}

		bodyComparer, err = jsondiff.New(c)
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	e := &Evaluator{
		logger:  config.Logger,
		headers: headerValidator,
		bodies:  bodyComparer,
	}

	return e, nil
}

// Evaluate compares resp with expect. Mismatches go into the Report; an
// invalid pattern in expect or a body that is not JSON is returned as an
// error.
func (e *Evaluator) Evaluate(resp *http.Response, expect *fixture.Expect, opts Options) (*Report, error) {
	report := &Report{}

	if m := checkStatus(resp, expect); m != nil {
		report.Status = m
		if opts.FailOnStatus {
			report.Truncated = len(expect.Headers) > 0 || expect.HasBody()
			return report, nil
		}
	}

	if len(expect.Headers) > 0 {
		// Response header names arrive canonicalised by net/http.
		mismatches, err := e.headers.Validate(resp.Headers, headers.Expected(expect.Headers).Canonical())
		if err != nil {
			return nil, microerror.Mask(err)
		}
		report.Headers = mismatches
	}

	if expect.HasBody() {
		ignore := opts.IgnoreArrayOrder
		if expect.IgnoreArrayOrder != nil {
			ignore = *expect.IgnoreArrayOrder
		}

		diffs, err := e.bodies.CompareBytes(resp.Body, expect.BodyJSON(), jsondiff.Options{IgnoreArrayOrder: ignore})
		if err != nil {
			e.logger.Log("level", "debug", "message", "body comparison aborted", "status", resp.StatusCode, "content-type", resp.ContentType())
			return nil, microerror.Mask(err)
		}
		report.Body = diffs
	}

	return report, nil
}

func checkStatus(resp *http.Response, expect *fixture.Expect) *StatusMismatch {
	codeOK := expect.Status == 0 || expect.Status == resp.StatusCode
	textOK := expect.StatusText == "" || strings.EqualFold(strings.TrimSpace(expect.StatusText), resp.StatusText)
	if codeOK && textOK {
		return nil
	}

	m := &StatusMismatch{
		Expected:     expect.Status,
		Actual:       resp.StatusCode,
		ExpectedText: expect.StatusText,
		ActualText:   resp.StatusText,
	}
	if m.Expected == 0 {
		m.Expected = resp.StatusCode
	}
	return m
}

// StatusMismatch is set when the status code or the reason phrase differ.
type StatusMismatch struct {
	Expected     int    `json:"expected"`
	Actual       int    `json:"actual"`
	ExpectedText string `json:"expectedText,omitempty"`
	ActualText   string `json:"actualText,omitempty"`
}

func (m StatusMismatch) String() string {
	expected := fmt.Sprintf("%d", m.Expected)
	if m.ExpectedText != "" {
		expected += " " + m.ExpectedText
	}
	return fmt.Sprintf("status: expected %s, actual %d %s", expected, m.Actual, m.ActualText)
}

// Report holds everything that did not match for one response.
type Report struct {
	Status  *StatusMismatch       `json:"status,omitempty"`
	Headers []headers.Mismatch    `json:"headers,omitempty"`
	Body    []jsondiff.Difference `json:"body,omitempty"`
	// Truncated is set when a status mismatch stopped the header and body
	// checks.
	Truncated bool `json:"truncated,omitempty"`
}

// Failed reports whether anything did not match.
func (r *Report) Failed() bool {
	return r.Count() > 0
}

// Count is the number of individual problems.
func (r *Report) Count() int {
	n := len(r.Headers) + len(r.Body)
	if r.Status != nil {
		n++
	}
	return n
}

// Result is one problem of a Report flattened for formatters.
type Result struct {
	// Subject is "status", "header <name>" or "body <path>".
	Subject  string
	Kind     string
	Expected string
	Actual   string
	Message  string
}

// Results lists every problem: status first, then headers, then body.
func (r *Report) Results() []Result {
	results := make([]Result, 0, r.Count())

	if r.Status != nil {
		results = append(results, Result{
			Subject:  "status",
			Kind:     "status-mismatch",
			Expected: strings.TrimSpace(fmt.Sprintf("%d %s", r.Status.Expected, r.Status.ExpectedText)),
			Actual:   strings.TrimSpace(fmt.Sprintf("%d %s", r.Status.Actual, r.Status.ActualText)),
			Message:  r.Status.String(),
		})
	}

	for _, m := range r.Headers {
		results = append(results, Result{
			Subject:  "header " + m.Header,
			Kind:     m.Kind.String(),
			Expected: m.Expected.String(),
			Actual:   m.Actual,
			Message:  m.String(),
		})
	}

	for _, d := range r.Body {
		results = append(results, Result{
			Subject:  "body " + jsondiff.Display(d.Path()),
			Kind:     d.Kind.String(),
			Expected: d.Expected,
			Actual:   d.Actual,
			Message:  d.String(),
		})
	}

	return results
}

// String renders every problem on its own line, suitable as a test failure
// message.
func (r *Report) String() string {
	if !r.Failed() {
		return "response matches"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d mismatch(es):", r.Count())
	for _, res := range r.Results() {
		sb.WriteString("\n  - ")
		sb.WriteString(res.Message)
	}
	if r.Truncated {
		sb.WriteString("\n  (headers and body not compared)")
	}
	return sb.String()
}
