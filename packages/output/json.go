package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitmatch/packages/assertions"
	"github.com/abdul-hamid-achik/hitmatch/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Errors   []string    `json:"errors,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Errored int          `json:"errored"`
	Skipped int          `json:"skipped"`
	Latency *JSONLatency `json:"latency,omitempty"`
}

// JSONLatency holds response time percentiles in milliseconds.
type JSONLatency struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type JSONTest struct {
	Name       string             `json:"name"`
	File       string             `json:"file"`
	Suite      string             `json:"suite,omitempty"`
	Status     string             `json:"status"`
	SkipReason string             `json:"skipReason,omitempty"`
	Duration   float64            `json:"duration"`
	Error      string             `json:"error,omitempty"`
	Request    *JSONRequest       `json:"request,omitempty"`
	Response   *JSONResponse      `json:"response,omitempty"`
	Report     *assertions.Report `json:"report,omitempty"`
	Captures   map[string]any     `json:"captures,omitempty"`
}

type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Curl    string            `json:"curl"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONFormatter formats run results as one JSON document written by Flush.
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	errors  []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		test := JSONTest{
			Name:     r.Name,
			File:     result.File,
			Suite:    result.Suite,
			Status:   r.Status().String(),
			Duration: milliseconds(r.Duration),
		}

		if r.SkipReason != "" && r.SkipReason != runner.SkipFiltered {
			test.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			test.Error = r.Error.Error()
		}

		if r.Request != nil {
			test.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.BuildURL(),
				Headers: r.Request.Headers,
				Curl:    r.Request.Curl(),
			}
		}

		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Duration:   milliseconds(r.Response.Duration),
			}
		}

		if r.Report != nil && r.Report.Failed() {
			test.Report = r.Report
		}

		if len(r.Captures) > 0 {
			test.Captures = r.Captures
		}

		f.results = append(f.results, test)
	}
}

// FormatError records errors that are not tied to a case, such as a fixture
// file that does not load.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(summary *runner.Summary) error {
	var s JSONSummary
	for _, t := range f.results {
		switch t.Status {
		case runner.StatusPassed.String():
			s.Passed++
		case runner.StatusFailed.String():
			s.Failed++
		case runner.StatusErrored.String():
			s.Errored++
		default:
			s.Skipped++
		}
	}
	s.Total = len(f.results)

	var duration time.Duration
	if summary != nil {
		duration = summary.Duration
		if l := summary.Latency; l.Count > 0 {
			s.Latency = &JSONLatency{
				P50: milliseconds(l.P50),
				P95: milliseconds(l.P95),
				P99: milliseconds(l.P99),
				Max: milliseconds(l.Max),
			}
		}
	}

	output := JSONOutput{
		Summary:  s,
		Tests:    f.results,
		Errors:   f.errors,
		Duration: milliseconds(duration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
