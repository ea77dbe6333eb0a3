package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

func TestCheck(t *testing.T) {
	t.Run("valid suite", func(t *testing.T) {
		suite, err := newLoader(t).Parse([]byte(`
cases:
  - request: {url: /a}
    expect:
      headers: {Age: "matchesPattern:\\d+", Server: cloudflare}
      body: {email: "matchesPattern:.+@reqres\\.in", tags: [a, b]}
`), "")
		require.NoError(t, err)
		assert.NoError(t, Check(suite))
	})

	t.Run("broken patterns are all reported", func(t *testing.T) {
		suite, err := newLoader(t).Parse([]byte(`
cases:
  - name: broken
    request: {url: /a}
    expect:
      headers:
        Age: "matchesPattern:[a-z"
        Server: "matchesPattern:("
      body:
        data:
          - id: 1
            name: "matchesPattern:*oops"
          - id: "matchesPattern:\\d+"
`), "")
		require.NoError(t, err)

		err = Check(suite)
		require.Error(t, err)
		assert.True(t, pattern.IsInvalidPattern(err))
		assert.Contains(t, err.Error(), `header "Age"`)
		assert.Contains(t, err.Error(), `header "Server"`)
		assert.Contains(t, err.Error(), "body data.0.name")
		assert.NotContains(t, err.Error(), "data.1.id")
	})

	t.Run("pattern at the root", func(t *testing.T) {
		suite, err := newLoader(t).Parse([]byte(`
cases:
  - request: {url: /a}
    expect:
      body: "matchesPattern:["
`), "")
		require.NoError(t, err)

		err = Check(suite)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "body $")
	})
}
