package pattern

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{name: "plain literal", input: "application/json", want: Literal("application/json")},
		{name: "empty literal", input: "", want: Literal("")},
		{name: "pattern", input: Prefix + `\d+`, want: Pattern(`\d+`)},
		{name: "empty pattern", input: Prefix, want: Pattern("")},
		{name: "prefix not at start", input: "x" + Prefix + "abc", want: Literal("x" + Prefix + "abc")},
		{name: "prefix repeated keeps the rest", input: Prefix + Prefix + "a", want: Pattern(Prefix + "a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "cloudflare", Literal("cloudflare").String())
	assert.Equal(t, Prefix+`\d+`, Pattern(`\d+`).String())
}

func TestValue_Match(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		actual  string
		matched bool
	}{
		{name: "literal equal", value: Literal("chunked"), actual: "chunked", matched: true},
		{name: "literal differs", value: Literal("application/json"), actual: "application/xml", matched: false},
		{name: "literal is case sensitive", value: Literal("Express"), actual: "express", matched: false},
		{name: "digits", value: Pattern(`\d+`), actual: "1858", matched: true},
		{name: "digits against letters", value: Pattern(`\d+`), actual: "abc", matched: false},
		{name: "letters against digits", value: Pattern(`[a-z]+`), actual: "1858", matched: false},
		{name: "substring is not enough", value: Pattern(`\d+`), actual: "age 1858", matched: false},
		{name: "alternation is anchored as a whole", value: Pattern(`a|ab`), actual: "ab", matched: true},
		{
			name:    "http date",
			value:   Pattern(`[A-Za-z]{3}.\s\d{1,2}\s[A-Za-z]{3}\s\d{4}\s\d{2}:\d{2}:\d{2}\s[A-Z]{3}`),
			actual:  "Sat, 22 Apr 2023 03:47:43 GMT",
			matched: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, err := tt.value.Match(tt.actual)
			require.NoError(t, err)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("[")
	require.Error(t, err)
	assert.True(t, IsInvalidPattern(err))
	assert.Contains(t, err.Error(), "[")

	_, err = Pattern("(").Match("anything")
	require.Error(t, err)
	assert.True(t, IsInvalidPattern(err))
}

func TestValue_UnmarshalYAML(t *testing.T) {
	input := `
Content-Type: application/json
Age: "matchesPattern:\\d+"
Date: {pattern: "[A-Z].*"}
Server: {value: "matchesPattern:literal"}
Content-Length: 42
Empty: null
`
	var got map[string]Value
	require.NoError(t, yaml.Unmarshal([]byte(input), &got))

	assert.Equal(t, Literal("application/json"), got["Content-Type"])
	assert.Equal(t, Pattern(`\d+`), got["Age"])
	assert.Equal(t, Pattern("[A-Z].*"), got["Date"])
	assert.Equal(t, Literal(Prefix+"literal"), got["Server"])
	assert.Equal(t, Literal("42"), got["Content-Length"])
	assert.Equal(t, Literal(""), got["Empty"])
}

func TestValue_UnmarshalYAML_InvalidDescriptor(t *testing.T) {
	var got map[string]Value
	err := yaml.Unmarshal([]byte(`Age: {pattern: "a", value: "b"}`), &got)
	require.Error(t, err)
	assert.True(t, IsInvalidDescriptor(err))

	err = yaml.Unmarshal([]byte(`Age: [1, 2]`), &got)
	require.Error(t, err)
	assert.True(t, IsInvalidDescriptor(err))
}

func TestValue_UnmarshalJSON(t *testing.T) {
	input := `{"Age": "matchesPattern:\\d+", "X-Count": 3, "X-Flag": true, "Date": {"pattern": "\\w+"}}`
	var got map[string]Value
	require.NoError(t, json.Unmarshal([]byte(input), &got))

	assert.Equal(t, Pattern(`\d+`), got["Age"])
	assert.Equal(t, Literal("3"), got["X-Count"])
	assert.Equal(t, Literal("true"), got["X-Flag"])
	assert.Equal(t, Pattern(`\w+`), got["Date"])
}

func TestValue_MarshalKeepsTextualForm(t *testing.T) {
	in := map[string]Value{"Age": Pattern(`\d+`), "Server": Literal("cloudflare")}

	data, err := yaml.Marshal(in)
	require.NoError(t, err)

	var back map[string]Value
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, in, back)

	data, err = json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Age": "matchesPattern:\\d+", "Server": "cloudflare"}`, string(data))
}
