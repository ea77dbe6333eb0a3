package assertions

import (
	"bytes"
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/giantswarm/micrologger"
	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
	"github.com/abdul-hamid-achik/hitmatch/packages/headers"
	"github.com/abdul-hamid-achik/hitmatch/packages/http"
	"github.com/abdul-hamid-achik/hitmatch/packages/jsondiff"
	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := New(Config{Logger: microloggertest.New()})
	require.NoError(t, err)
	return e
}

func usersResponse() *http.Response {
	return &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		StatusText: "OK",
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Age":          "1858",
			"Server":       "cloudflare",
		},
		Body: []byte(`{"data":[{"id":1,"name":"B"}]}`),
	}
}

func expectBody(e fixture.Expect, body string) *fixture.Expect {
	e.SetBodyJSON([]byte(body))
	return &e
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))
}

func TestEvaluate_Passes(t *testing.T) {
	expect := expectBody(fixture.Expect{
		Status:     200,
		StatusText: "ok",
		Headers: map[string]pattern.Value{
			"Content-Type": pattern.Literal("application/json; charset=utf-8"),
			"Age":          pattern.Pattern(`\d+`),
		},
	}, `{"data":[{"id":1,"name":"matchesPattern:[A-Z]"}]}`)

	report, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{IgnoreArrayOrder: true, FailOnStatus: true})
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Equal(t, 0, report.Count())
	assert.Empty(t, report.Results())
	assert.Equal(t, "response matches", report.String())
}

func TestEvaluate_BodyDifferenceAtPath(t *testing.T) {
	expect := expectBody(fixture.Expect{Status: 200}, `{"data":[{"id":1,"name":"A"}]}`)

	for _, ignore := range []bool{true, false} {
		report, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{IgnoreArrayOrder: ignore})
		require.NoError(t, err)
		require.Len(t, report.Body, 1)

		d := report.Body[0]
		assert.Equal(t, jsondiff.KindValueMismatch, d.Kind)
		assert.Equal(t, "data[0].name", d.Path())
		assert.Equal(t, `"A"`, d.Expected)
		assert.Equal(t, `"B"`, d.Actual)
		assert.Nil(t, report.Status)
		assert.Empty(t, report.Headers)
	}
}

func TestEvaluate_AgeHeaderPattern(t *testing.T) {
	tests := []struct {
		name       string
		pattern    string
		mismatches int
	}{
		{name: "digits", pattern: `\d+`, mismatches: 0},
		{name: "letters", pattern: `[a-z]+`, mismatches: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect := &fixture.Expect{Headers: map[string]pattern.Value{"Age": pattern.Pattern(tt.pattern)}}

			report, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{})
			require.NoError(t, err)
			require.Len(t, report.Headers, tt.mismatches)
			if tt.mismatches > 0 {
				assert.Equal(t, headers.KindPatternMismatch, report.Headers[0].Kind)
				assert.Equal(t, "1858", report.Headers[0].Actual)
			}
		})
	}
}

func TestEvaluate_AggregatesHeadersAndBody(t *testing.T) {
	expect := expectBody(fixture.Expect{
		Status: 200,
		Headers: map[string]pattern.Value{
			"Content-Type": pattern.Literal("application/xml"),
			"X-Missing":    pattern.Literal("yes"),
		},
	}, `{"data":[{"id":1,"name":"A"}],"total":1}`)

	report, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{IgnoreArrayOrder: true})
	require.NoError(t, err)

	assert.True(t, report.Failed())
	assert.Len(t, report.Headers, 2)
	assert.Len(t, report.Body, 2)
	assert.Equal(t, 4, report.Count())

	results := report.Results()
	require.Len(t, results, 4)
	assert.Equal(t, "header Content-Type", results[0].Subject)
	assert.Equal(t, "value-mismatch", results[0].Kind)
	assert.Equal(t, "application/xml", results[0].Expected)
	assert.Equal(t, "application/json; charset=utf-8", results[0].Actual)
	assert.Equal(t, "header X-Missing", results[1].Subject)
	assert.Equal(t, "missing", results[1].Kind)
	assert.Equal(t, "body data[0].name", results[2].Subject)
	assert.Equal(t, "body total", results[3].Subject)
	assert.Equal(t, "missing-field", results[3].Kind)

	msg := report.String()
	assert.Contains(t, msg, "4 mismatch(es):")
	assert.Contains(t, msg, "application/xml")
	assert.Contains(t, msg, "X-Missing")
	assert.Contains(t, msg, "data[0].name")
	assert.Contains(t, msg, "total")
}

func TestEvaluate_Status(t *testing.T) {
	expect := expectBody(fixture.Expect{
		Status:  201,
		Headers: map[string]pattern.Value{"X-Missing": pattern.Literal("yes")},
	}, `{"data":[]}`)

	t.Run("fail on status stops early", func(t *testing.T) {
		report, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{FailOnStatus: true})
		require.NoError(t, err)
		require.NotNil(t, report.Status)
		assert.Equal(t, 201, report.Status.Expected)
		assert.Equal(t, 200, report.Status.Actual)
		assert.True(t, report.Truncated)
		assert.Empty(t, report.Headers)
		assert.Empty(t, report.Body)
		assert.Contains(t, report.String(), "status: expected 201, actual 200 OK")
		assert.Contains(t, report.String(), "not compared")
	})

	t.Run("without fail on status everything is compared", func(t *testing.T) {
		report, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{})
		require.NoError(t, err)
		assert.NotNil(t, report.Status)
		assert.False(t, report.Truncated)
		assert.Len(t, report.Headers, 1)
		assert.Len(t, report.Body, 1)
		assert.Equal(t, 3, report.Count())
	})

	t.Run("status text is case insensitive", func(t *testing.T) {
		report, err := newEvaluator(t).Evaluate(usersResponse(), &fixture.Expect{Status: 200, StatusText: "ok"}, Options{})
		require.NoError(t, err)
		assert.False(t, report.Failed())

		report, err = newEvaluator(t).Evaluate(usersResponse(), &fixture.Expect{StatusText: "Created"}, Options{})
		require.NoError(t, err)
		require.NotNil(t, report.Status)
		assert.Equal(t, 200, report.Status.Expected)
		assert.Equal(t, "Created", report.Status.ExpectedText)
	})
}

func TestEvaluate_CaseOverridesArrayOrder(t *testing.T) {
	resp := usersResponse()
	resp.Body = []byte(`{"ids":[3,1,2]}`)
	ordered := false
	expect := expectBody(fixture.Expect{IgnoreArrayOrder: &ordered}, `{"ids":[1,2,3]}`)

	report, err := newEvaluator(t).Evaluate(resp, expect, Options{IgnoreArrayOrder: true})
	require.NoError(t, err)
	assert.Len(t, report.Body, 3)

	expect.IgnoreArrayOrder = nil
	report, err = newEvaluator(t).Evaluate(resp, expect, Options{IgnoreArrayOrder: true})
	require.NoError(t, err)
	assert.Empty(t, report.Body)
}

func TestEvaluate_Errors(t *testing.T) {
	t.Run("invalid header pattern", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := micrologger.New(micrologger.Config{IOWriter: &buf})
		require.NoError(t, err)
		e, err := New(Config{Logger: logger})
		require.NoError(t, err)

		expect := expectBody(fixture.Expect{Headers: map[string]pattern.Value{"Age": pattern.Pattern("[")}}, `{"data":[]}`)
		report, err := e.Evaluate(usersResponse(), expect, Options{})
		require.Error(t, err)
		assert.Nil(t, report)
		assert.True(t, pattern.IsInvalidPattern(err))
		assert.Contains(t, buf.String(), "Age")
	})

	t.Run("invalid body pattern", func(t *testing.T) {
		expect := expectBody(fixture.Expect{}, `{"data":[{"id":1,"name":"matchesPattern:("}]}`)
		_, err := newEvaluator(t).Evaluate(usersResponse(), expect, Options{IgnoreArrayOrder: true})
		require.Error(t, err)
		assert.True(t, pattern.IsInvalidPattern(err))
	})

	t.Run("actual body is not JSON", func(t *testing.T) {
		resp := usersResponse()
		resp.Body = []byte("<html>oops</html>")
		_, err := newEvaluator(t).Evaluate(resp, expectBody(fixture.Expect{}, `{}`), Options{})
		require.Error(t, err)
		assert.True(t, jsondiff.IsInvalidJSON(err))
	})

	t.Run("status mismatch with fail on status hides body errors", func(t *testing.T) {
		resp := usersResponse()
		resp.StatusCode = 502
		resp.StatusText = "Bad Gateway"
		resp.Body = []byte("<html>bad gateway</html>")
		report, err := newEvaluator(t).Evaluate(resp, expectBody(fixture.Expect{Status: 200}, `{}`), Options{FailOnStatus: true})
		require.NoError(t, err)
		assert.True(t, report.Failed())
		assert.Equal(t, "status: expected 200, actual 502 Bad Gateway", report.Status.String())
	})
}

func TestEvaluate_HeaderNamesAsSentOnTheWire(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header()["x-request-id"] = []string{"abc"}
		w.Header()["x-rate-limit"] = []string{"60"}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp, err := http.NewClient().Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Headers["X-Request-Id"])

	expect := &fixture.Expect{Headers: map[string]pattern.Value{
		"x-request-id": pattern.Literal("abc"),
		"x-rate-limit": pattern.Pattern(`\d+`),
		"X-Trace-Id":   pattern.Pattern(`.+`),
	}}

	report, err := newEvaluator(t).Evaluate(resp, expect, Options{})
	require.NoError(t, err)
	require.Len(t, report.Headers, 1)
	assert.Equal(t, "X-Trace-Id", report.Headers[0].Header)
	assert.Equal(t, headers.KindMissing, report.Headers[0].Kind)
}
