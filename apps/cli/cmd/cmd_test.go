package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitmatch/packages/core/runner"
	"github.com/abdul-hamid-achik/hitmatch/packages/history"
	hmhttp "github.com/abdul-hamid-achik/hitmatch/packages/http"
)

func executeArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	code := execute(args)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExitCode(t *testing.T) {
	transportErr := func() error {
		_, err := hmhttp.NewClient().Get(context.Background(), "http://127.0.0.1:1/", nil)
		return err
	}()
	require.True(t, hmhttp.IsTransport(transportErr))

	passed := &runner.CaseResult{Passed: true}
	failed := &runner.CaseResult{}
	offline := &runner.CaseResult{Error: transportErr}
	broken := &runner.CaseResult{Error: errors.New("invalid pattern")}

	tests := []struct {
		name       string
		results    []*runner.RunResult
		loadFailed bool
		want       int
	}{
		{"all passed", []*runner.RunResult{{Results: []*runner.CaseResult{passed}}}, false, ExitSuccess},
		{"nothing ran", nil, false, ExitSuccess},
		{"failure", []*runner.RunResult{{Results: []*runner.CaseResult{passed, failed}, Failed: 1}}, false, ExitTestFailure},
		{"only network", []*runner.RunResult{{Results: []*runner.CaseResult{passed, offline}, Errored: 1}}, false, ExitNetworkError},
		{"broken case", []*runner.RunResult{{Results: []*runner.CaseResult{offline, broken}, Errored: 2}}, false, ExitTestFailure},
		{"failure and network", []*runner.RunResult{{Results: []*runner.CaseResult{failed, offline}, Failed: 1, Errored: 1}}, false, ExitTestFailure},
		{"load failure wins", []*runner.RunResult{{Results: []*runner.CaseResult{failed}, Failed: 1}}, true, ExitParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.results, tt.loadFailed))
		})
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"token=abc", "query=a=b", " user =x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"token": "abc", "query": "a=b", "user": "x"}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"smoke", "users"}, splitList(" smoke, ,users "))
	assert.Nil(t, splitList(""))
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Authorization: Bearer a:b", "X-Empty:"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer a:b", "X-Empty": ""}, headers)

	_, err = parseHeaders([]string{"no colon"})
	assert.Error(t, err)
}

func TestDefaultCaseName(t *testing.T) {
	assert.Equal(t, "GET /api/users?page=2", defaultCaseName("GET", "https://reqres.in/api/users?page=2"))
	assert.Equal(t, "POST /", defaultCaseName("POST", "http://localhost:3000"))
}

func TestExitError(t *testing.T) {
	err := exitWith(ExitParseError, errors.New("bad fixture"))
	assert.Equal(t, "bad fixture", err.Error())

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ExitParseError, ee.code)

	assert.Equal(t, "exit status 1", exitWith(ExitTestFailure, nil).Error())
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.fixture.yaml", `
cases:
  - name: one
    request: {url: http://localhost/}
    expect:
      headers:
        Age: "matchesPattern:\\d+"
`)

	code, stdout, _ := executeArgs(t, "validate", good)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Valid: "+good+" (1 cases)")

	bad := writeFile(t, dir, "bad.fixture.yaml", `
cases:
  - name: one
    request: {url: http://localhost/}
    expect:
      body: {name: "matchesPattern:[a-z"}
`)
	code, _, stderr := executeArgs(t, "validate", dir)
	assert.Equal(t, ExitParseError, code)
	assert.Contains(t, stderr, "Error in "+bad)
	assert.Contains(t, stderr, "body name")
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	expected := writeFile(t, dir, "expected.json", `{"name":"Janet","id":"matchesPattern:\\d+","tags":["a","b"]}`)
	same := writeFile(t, dir, "same.json", `{"id":"12","name":"Janet","tags":["b","a"]}`)
	changed := writeFile(t, dir, "changed.json", `{"id":"12","name":"Janat","tags":["a","b"]}`)

	code, stdout, _ := executeArgs(t, "diff", expected, same)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "documents match")

	code, stdout, _ = executeArgs(t, "diff", expected, changed)
	assert.Equal(t, ExitTestFailure, code)
	assert.Contains(t, stdout, "1 difference(s)")
	assert.Contains(t, stdout, `name: expected "Janet", actual "Janat"`)

	code, _, stderr := executeArgs(t, "diff", expected, filepath.Join(dir, "missing.json"))
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "failed to load")
}

func TestRunCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Age", "12")
		_, _ = w.Write([]byte(`{"data":[{"id":7,"name":"Janet"},{"id":8,"name":"Emma"}]}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "hitmatch.config.json", `{"baseUrl": "`+server.URL+`"}`)
	fixturePath := writeFile(t, dir, "fixtures/users.fixture.yaml", `
cases:
  - name: unordered
    request: {url: /api/users}
    expect:
      status: 200
      headers:
        Age: "matchesPattern:\\d+"
      body:
        data:
          - {id: 8, name: Emma}
          - {id: 7, name: Janet}
  - name: wrong name
    request: {url: /api/users}
    expect:
      status: 200
      headers:
        Age: "matchesPattern:[a-z]+"
      body:
        data:
          - {id: 7, name: Janat}
          - {id: 8, name: Emma}
`)
	outPath := filepath.Join(dir, "out", "report.json")
	dbPath := filepath.Join(dir, ".hitmatch", "history.db")

	require.NoError(t, os.MkdirAll(filepath.Dir(outPath), 0o755))

	code, _, _ := executeArgs(t, "run", filepath.Dir(fixturePath),
		"--config", configPath,
		"--output", "json",
		"--output-file", outPath,
		"--history", dbPath,
	)
	assert.Equal(t, ExitTestFailure, code)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var report struct {
		Summary struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
			Failed int `json:"failed"`
		} `json:"summary"`
		Tests []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"tests"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Passed)
	assert.Equal(t, 1, report.Summary.Failed)
	require.Len(t, report.Tests, 2)
	assert.Equal(t, "passed", report.Tests[0].Status)
	assert.Equal(t, "failed", report.Tests[1].Status)

	store, err := history.Open(context.Background(), history.Config{Logger: microloggertest.New(), Path: dbPath})
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Failed)

	_, cases, err := store.Get(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	require.NotNil(t, cases[1].Report)
	assert.Len(t, cases[1].Report.Results(), 2)
}
