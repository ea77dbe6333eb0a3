package headers

import (
	"bytes"
	"testing"

	"github.com/giantswarm/micrologger"
	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(Config{Logger: microloggertest.New()})
	require.NoError(t, err)
	return v
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))
}

func TestValidate_AllSatisfied(t *testing.T) {
	v := newValidator(t)

	actual := map[string]string{
		"Content-Type":      "application/json; charset=utf-8",
		"Transfer-Encoding": "chunked",
		"Age":               "1858",
		"Date":              "Sat, 22 Apr 2023 03:47:43 GMT",
		"X-Extra":           "ignored",
	}
	expected := ParseExpected(map[string]string{
		"Content-Type":      "application/json; charset=utf-8",
		"Transfer-Encoding": "chunked",
		"Age":               pattern.Prefix + `\d+`,
		"Date":              pattern.Prefix + `[A-Za-z]{3}.\s\d{1,2}\s[A-Za-z]{3}\s\d{4}\s\d{2}:\d{2}:\d{2}\s[A-Z]{3}`,
	})

	mismatches, err := v.Validate(actual, expected)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestValidate_PatternDirective(t *testing.T) {
	v := newValidator(t)
	expected := ParseExpected(map[string]string{"Age": pattern.Prefix + `\d+`})

	t.Run("digits match", func(t *testing.T) {
		mismatches, err := v.Validate(map[string]string{"Age": "1858"}, expected)
		require.NoError(t, err)
		assert.Empty(t, mismatches)
	})

	t.Run("letters do not", func(t *testing.T) {
		mismatches, err := v.Validate(map[string]string{"Age": "abc"}, expected)
		require.NoError(t, err)
		require.Len(t, mismatches, 1)
		assert.Equal(t, KindPatternMismatch, mismatches[0].Kind)
		assert.Equal(t, "Age", mismatches[0].Header)
		assert.Equal(t, "abc", mismatches[0].Actual)
		assert.Equal(t, `\d+`, mismatches[0].Expected.Text)
	})

	t.Run("wrong pattern against the same value", func(t *testing.T) {
		wrong := ParseExpected(map[string]string{"Age": pattern.Prefix + `[a-z]+`})
		mismatches, err := v.Validate(map[string]string{"Age": "1858"}, wrong)
		require.NoError(t, err)
		require.Len(t, mismatches, 1)
		assert.Equal(t, KindPatternMismatch, mismatches[0].Kind)
	})
}

func TestValidate_LiteralMismatch(t *testing.T) {
	v := newValidator(t)

	mismatches, err := v.Validate(
		map[string]string{"Content-Type": "application/xml"},
		ParseExpected(map[string]string{"Content-Type": "application/json"}),
	)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)

	m := mismatches[0]
	assert.Equal(t, KindValueMismatch, m.Kind)
	assert.Equal(t, "application/json", m.Expected.Text)
	assert.Equal(t, "application/xml", m.Actual)
	assert.Contains(t, m.String(), "application/json")
	assert.Contains(t, m.String(), "application/xml")
}

func TestValidate_MissingHeadersAreCountedOnce(t *testing.T) {
	v := newValidator(t)

	actual := map[string]string{
		"Content-Type": "application/xml",
		"Age":          "abc",
	}
	expected := ParseExpected(map[string]string{
		"Content-Type":   "application/json",
		"Age":            pattern.Prefix + `\d+`,
		"Missing-Header": "Faked",
		"Other-Missing":  pattern.Prefix + ".*",
	})

	mismatches, err := v.Validate(actual, expected)
	require.NoError(t, err)
	require.Len(t, mismatches, 4)

	byHeader := map[string]Mismatch{}
	for _, m := range mismatches {
		byHeader[m.Header] = m
	}
	assert.Equal(t, KindMissing, byHeader["Missing-Header"].Kind)
	assert.Equal(t, KindMissing, byHeader["Other-Missing"].Kind)
	assert.Equal(t, KindValueMismatch, byHeader["Content-Type"].Kind)
	assert.Equal(t, KindPatternMismatch, byHeader["Age"].Kind)
	assert.Contains(t, byHeader["Missing-Header"].String(), "missing")
}

func TestValidate_HeaderNamesAreCaseSensitive(t *testing.T) {
	v := newValidator(t)

	mismatches, err := v.Validate(
		map[string]string{"content-type": "application/json"},
		ParseExpected(map[string]string{"Content-Type": "application/json"}),
	)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, KindMissing, mismatches[0].Kind)
}

func TestValidate_InvalidPatternFailsFast(t *testing.T) {
	var buf bytes.Buffer
	logger, err := micrologger.New(micrologger.Config{IOWriter: &buf})
	require.NoError(t, err)

	v, err := New(Config{Logger: logger})
	require.NoError(t, err)

	mismatches, err := v.Validate(
		map[string]string{"Age": "1858", "Server": "nginx"},
		ParseExpected(map[string]string{
			"Age":    pattern.Prefix + "[",
			"Server": "cloudflare",
		}),
	)
	require.Error(t, err)
	assert.Nil(t, mismatches)
	assert.True(t, pattern.IsInvalidPattern(err))
	assert.Contains(t, err.Error(), "Age")

	logged := buf.String()
	assert.Contains(t, logged, "Age")
	assert.Contains(t, logged, pattern.Prefix)
}

func TestValidate_MissingHeaderDoesNotCompilePattern(t *testing.T) {
	v := newValidator(t)

	mismatches, err := v.Validate(
		map[string]string{},
		ParseExpected(map[string]string{"Age": pattern.Prefix + "["}),
	)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, KindMissing, mismatches[0].Kind)
}

func TestExpected_Canonical(t *testing.T) {
	expected := ParseExpected(map[string]string{
		"x-request-id": "abc",
		"content-type": "application/json",
		"Age":          `matchesPattern:\d+`,
	}).Canonical()

	assert.Equal(t, Expected{
		"X-Request-Id": pattern.Literal("abc"),
		"Content-Type": pattern.Literal("application/json"),
		"Age":          pattern.Pattern(`\d+`),
	}, expected)

	t.Run("existing canonical name keeps both", func(t *testing.T) {
		got := ParseExpected(map[string]string{"etag": "a", "Etag": "b"}).Canonical()
		assert.Equal(t, Expected{"etag": pattern.Literal("a"), "Etag": pattern.Literal("b")}, got)
	})
}
