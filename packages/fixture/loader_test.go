package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

const usersSuite = `
name: reqres users
baseUrl: https://reqres.in
variables:
  page: 2
cases:
  - name: list users
    tags: [users, smoke]
    request:
      url: /api/users?page={{page}}
    expect:
      status: 200
      statusText: ok
      headers:
        Content-Type: application/json; charset=utf-8
        Age: "matchesPattern:\\d+"
        Date: {pattern: "[A-Z][a-z]{2},.*"}
      body:
        page: 2
        data:
          - id: 7
            email: "matchesPattern:.+@reqres\\.in"
    capture:
      firstId: data[0].id
  - name: create user
    request:
      method: post
      url: /api/users
      body:
        name: morpheus
        job: leader
    expect:
      status: 201
      bodyFile: bodies/created.json
      ignoreArrayOrder: false
  - request:
      url: /api/unknown
      body: plain text
    skip: true
`

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := New(Config{Logger: microloggertest.New()})
	require.NoError(t, err)
	return l
}

func writeSuite(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "bodies/created.json", "{\n  \"name\": \"morpheus\",\n  \"id\": \"matchesPattern:\\\\d+\"\n}\n")
	path := writeSuite(t, dir, "users.fixture.yaml", usersSuite)

	suite, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, suite.Path)
	assert.Equal(t, "reqres users", suite.Name)
	assert.Equal(t, "https://reqres.in", suite.BaseURL)
	assert.Equal(t, map[string]any{"page": 2}, suite.Variables)
	require.Len(t, suite.Cases, 3)

	list := suite.Cases[0]
	assert.Equal(t, "GET", list.Request.Method)
	assert.Equal(t, 200, list.Expect.Status)
	assert.Equal(t, "ok", list.Expect.StatusText)
	assert.Equal(t, map[string]pattern.Value{
		"Content-Type": pattern.Literal("application/json; charset=utf-8"),
		"Age":          pattern.Pattern(`\d+`),
		"Date":         pattern.Pattern(`[A-Z][a-z]{2},.*`),
	}, list.Expect.Headers)
	require.True(t, list.Expect.HasBody())
	assert.JSONEq(t, `{"page": 2, "data": [{"id": 7, "email": "matchesPattern:.+@reqres\\.in"}]}`, string(list.Expect.BodyJSON()))
	assert.Equal(t, map[string]string{"firstId": "data[0].id"}, list.Capture)
	assert.True(t, list.HasTag("SMOKE"))
	assert.False(t, list.HasTag("admin"))
	assert.Nil(t, list.Expect.IgnoreArrayOrder)

	create := suite.Cases[1]
	assert.Equal(t, "POST", create.Request.Method)
	body, isJSON, err := create.Request.BodyText()
	require.NoError(t, err)
	assert.True(t, isJSON)
	assert.JSONEq(t, `{"name": "morpheus", "job": "leader"}`, body)
	assert.Equal(t, `{"name":"morpheus","id":"matchesPattern:\\d+"}`, string(create.Expect.BodyJSON()))
	require.NotNil(t, create.Expect.IgnoreArrayOrder)
	assert.False(t, *create.Expect.IgnoreArrayOrder)

	unnamed := suite.Cases[2]
	assert.Equal(t, "case 3", unnamed.Name)
	assert.True(t, unnamed.Skip)
	assert.False(t, unnamed.Expect.HasBody())
	body, isJSON, err = unnamed.Request.BodyText()
	require.NoError(t, err)
	assert.False(t, isJSON)
	assert.Equal(t, "plain text", body)
}

func TestLoader_LoadJSONSuite(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "single.fixture.json", `{
  "cases": [{
    "name": "single user",
    "request": {"url": "https://reqres.in/api/users/2"},
    "expect": {
      "status": 200,
      "headers": {"Age": "matchesPattern:\\d+"},
      "body": "{\"data\": {\"id\": 2, \"first_name\": \"Janet\"}}"
    }
  }]
}`)

	suite, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "single", suite.Name)
	c := suite.Cases[0]
	assert.Equal(t, pattern.Pattern(`\d+`), c.Expect.Headers["Age"])
	assert.Equal(t, `{"data":{"id":2,"first_name":"Janet"}}`, string(c.Expect.BodyJSON()))
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not yaml", content: "cases: [unclosed"},
		{name: "no cases", content: "name: empty"},
		{name: "missing url", content: "cases:\n  - name: a\n"},
		{name: "duplicate names", content: "cases:\n  - {name: a, request: {url: /a}}\n  - {name: a, request: {url: /b}}\n"},
		{name: "body and bodyFile", content: "cases:\n  - request: {url: /a}\n    expect: {body: {a: 1}, bodyFile: a.json}\n"},
		{name: "bodyFile outside the fixture directory", content: "cases:\n  - request: {url: /a}\n    expect: {bodyFile: ../../etc/passwd}\n"},
		{name: "bodyFile missing", content: "cases:\n  - request: {url: /a}\n    expect: {bodyFile: nope.json}\n"},
		{name: "invalid header descriptor", content: "cases:\n  - request: {url: /a}\n    expect: {headers: {Age: [1]}}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSuite(t, t.TempDir(), "bad.fixture.yaml", tt.content)
			_, err := newLoader(t).Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
		})
	}

	_, err := newLoader(t).Load(filepath.Join(t.TempDir(), "missing.fixture.yaml"))
	require.Error(t, err)
	assert.True(t, IsFixtureLoad(err))
}

func TestLoader_BodyFileMustBeJSON(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "body.json", "not json")
	path := writeSuite(t, dir, "a.fixture.yaml", "cases:\n  - request: {url: /a}\n    expect: {bodyFile: body.json}\n")

	_, err := newLoader(t).Load(path)
	require.Error(t, err)
	assert.True(t, IsFixtureLoad(err))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "b.fixture.yaml", usersSuite)
	writeSuite(t, dir, "nested/a.fixture.json", "{}")
	writeSuite(t, dir, "nested/body.json", "{}")
	writeSuite(t, dir, ".hidden/c.fixture.yml", "{}")
	writeSuite(t, dir, ".hitmatch.yaml", "baseUrl: x")

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.fixture.yaml"),
		filepath.Join(dir, "nested", "a.fixture.json"),
	}, files)

	single := filepath.Join(dir, "nested", "body.json")
	files, err = Discover(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = Discover(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, IsFixtureLoad(err))
}

func TestValidatePathWithinBase(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		baseDir string
		wantErr bool
	}{
		{name: "path within base", path: "/home/user/project/file.json", baseDir: "/home/user/project"},
		{name: "path traversal attempt", path: "/home/user/project/../../../etc/passwd", baseDir: "/home/user/project", wantErr: true},
		{name: "relative path traversal", path: "../../../etc/passwd", baseDir: "/home/user/project", wantErr: true},
		{name: "empty base dir", path: "/any/path", baseDir: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePathWithinBase(tt.path, tt.baseDir)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "path traversal")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
