package env

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		captures  map[string]string
		expected  string
	}{
		{
			name:     "no variables",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "{{baseUrl}}/api/users?page=2",
			variables: map[string]any{"baseUrl": "https://reqres.in"},
			expected:  "https://reqres.in/api/users?page=2",
		},
		{
			name:      "spaces inside braces",
			input:     "{{ greeting }} {{name}}!",
			variables: map[string]any{"greeting": "Hello", "name": "World"},
			expected:  "Hello World!",
		},
		{
			name:      "non string variable",
			input:     "page={{page}}",
			variables: map[string]any{"page": 2},
			expected:  "page=2",
		},
		{
			name:     "capture variable",
			input:    "user {{userId}}",
			captures: map[string]string{"userId": "123"},
			expected: "user 123",
		},
		{
			name:      "capture wins over variable",
			input:     "{{userId}}",
			variables: map[string]any{"userId": "from-vars"},
			captures:  map[string]string{"userId": "from-capture"},
			expected:  "from-capture",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
		{
			name:     "base64 function",
			input:    "Basic {{base64('eve:secret')}}",
			expected: "Basic ZXZlOnNlY3JldA==",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			for k, v := range tt.captures {
				r.SetCapture("", k, v)
			}

			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolverNamespacedCapture(t *testing.T) {
	r := NewResolver()
	r.SetCapture("create user", "id", "456")

	assert.Equal(t, "/api/users/456", r.Resolve("/api/users/{{create user.id}}"))
	assert.Equal(t, "/api/users/456", r.Resolve("/api/users/{{id}}"))

	v, ok := r.GetCapture("create user.id")
	assert.True(t, ok)
	assert.Equal(t, "456", v)
}

func TestResolverEnvironmentVariables(t *testing.T) {
	t.Setenv("HITMATCH_TEST_TOKEN", "s3cr3t")

	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	assert.Equal(t, "Bearer s3cr3t", r.Resolve("Bearer {{$HITMATCH_TEST_TOKEN}}"))
	assert.Empty(t, warnings)

	assert.Equal(t, "{{$HITMATCH_TEST_UNSET}}", r.Resolve("{{$HITMATCH_TEST_UNSET}}"))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "HITMATCH_TEST_UNSET")
}

func TestResolverFunctions(t *testing.T) {
	r := NewResolver()

	id := r.Resolve("{{uuid()}}")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	s := r.Resolve("{{randomString(12)}}")
	assert.Len(t, s, 12)

	var warned bool
	r.SetWarnFunc(func(string, ...any) { warned = true })
	assert.Equal(t, "{{randomString(abc)}}", r.Resolve("{{randomString(abc)}}"))
	assert.True(t, warned)

	warned = false
	assert.Equal(t, "{{nope()}}", r.Resolve("{{nope()}}"))
	assert.True(t, warned)
}

func TestResolverGetUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  []string
	}{
		{name: "no variables", input: "hello world"},
		{name: "resolved variable", input: "{{foo}}", variables: map[string]any{"foo": "bar"}},
		{name: "single unresolved variable", input: "{{foo}}", expected: []string{"foo"}},
		{name: "multiple unresolved variables", input: "{{foo}} and {{bar}}", expected: []string{"foo", "bar"}},
		{
			name:      "mixed resolved and unresolved",
			input:     "{{foo}} and {{bar}} and {{baz}}",
			variables: map[string]any{"bar": "middle"},
			expected:  []string{"foo", "baz"},
		},
		{name: "functions and env are skipped", input: "{{uuid()}} {{$HOME}}"},
		{name: "nested path unresolved", input: "{{setup.projectId}}/tasks", expected: []string{"setup.projectId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)

			assert.Equal(t, tt.expected, r.GetUnresolvedVariables(tt.input))
			assert.Equal(t, len(tt.expected) > 0, r.HasUnresolvedVariables(tt.input))
		})
	}
}

func TestResolverResolveAll(t *testing.T) {
	r := NewResolver()
	r.SetVariable("token", "abc")

	got := r.ResolveAll(map[string]string{
		"Authorization": "Bearer {{token}}",
		"Accept":        "application/json",
	})
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"Accept":        "application/json",
	}, got)
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	clone := r.Clone()
	clone.SetVariable("a", "2")
	clone.SetCapture("", "b", "3")

	assert.Equal(t, "1", r.Resolve("{{a}}"))
	assert.False(t, r.HasVariable("b"))
	assert.Equal(t, "2 3", clone.Resolve("{{a}} {{b}}"))
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b, c", "d"}, parseArgs(`a, "b, c", 'd'`))
	assert.Nil(t, parseArgs(""))
}
