package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/abdul-hamid-achik/hitmatch/packages/assertions"
	"github.com/abdul-hamid-achik/hitmatch/packages/core/runner"
)

const (
	maxValueLen = 120
	// maxDiffLen bounds the values an inline diff is computed for.
	maxDiffLen = 2000
)

// formatValue truncates long values for display.
func formatValue(v string, maxLen int) string {
	if v == "" {
		return "(none)"
	}
	if len(v) > maxLen {
		return v[:maxLen] + "..."
	}
	return v
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.File
	if result.Suite != "" && result.Suite != title {
		title = fmt.Sprintf("%s (%s)", result.Suite, result.File)
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+title))

	for _, r := range result.Results {
		switch r.Status() {
		case runner.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != runner.SkipFiltered {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		case runner.StatusErrored:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			if f.verbose && r.Request != nil {
				fmt.Fprintf(f.writer, "    %s\n", r.Request.Curl())
			}
			continue
		case runner.StatusPassed:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		default:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		}

		if f.verbose && r.Request != nil {
			fmt.Fprintf(f.writer, "    %s\n", r.Request.Curl())
		}
		if f.verbose && r.Response != nil {
			fmt.Fprintf(f.writer, "    Status: %d %s\n", r.Response.StatusCode, r.Response.StatusText)
		}

		if r.Report != nil && r.Report.Failed() {
			f.formatReport(r.Report)
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			for name, value := range r.Captures {
				fmt.Fprintf(f.writer, "      %s = %v\n", name, value)
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	f.formatCounts(result.Passed, result.Failed, result.Errored, result.Skipped)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
}

func (f *ConsoleFormatter) formatReport(report *assertions.Report) {
	red := color.New(color.FgRed).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	for _, a := range report.Results() {
		fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Subject, faint(a.Kind))
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, maxValueLen))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, maxValueLen))
		if a.Kind == "value-mismatch" {
			if diff := inlineDiff(a.Expected, a.Actual); diff != "" {
				fmt.Fprintf(f.writer, "      Diff:     %s\n", diff)
			}
		}
	}
	if report.Truncated {
		fmt.Fprintf(f.writer, "      %s\n", faint("headers and body not compared after the status mismatch"))
	}
}

// inlineDiff renders a character diff between two short single-line
// values: removed text as [-x-], added text as {+x+}. It returns "" when
// the values share nothing worth showing.
func inlineDiff(expected, actual string) string {
	if expected == "" || actual == "" || len(expected) > maxDiffLen || len(actual) > maxDiffLen {
		return ""
	}
	if strings.ContainsAny(expected+actual, "\n\r") {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(expected, actual, false))

	common := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			common += len(d.Text)
		}
	}
	if common == 0 {
		return ""
	}

	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString(red("[-" + d.Text + "-]"))
		case diffmatchpatch.DiffInsert:
			sb.WriteString(green("{+" + d.Text + "+}"))
		default:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

func (f *ConsoleFormatter) formatCounts(passed, failed, errored, skipped int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "Tests: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errored", errored)))
	}
	if skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", passed+failed+errored+skipped)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitmatch"), version)
}

// Flush prints the totals of a run spanning several files.
func (f *ConsoleFormatter) Flush(summary *runner.Summary) error {
	if summary == nil {
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold(fmt.Sprintf("%d file(s)", summary.Files)))
	f.formatCounts(summary.Passed, summary.Failed, summary.Errored, summary.Skipped)
	if l := summary.Latency; l.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %s, p95 %s, p99 %s, max %s\n", l.P50, l.P95, l.P99, l.Max)
	}
	fmt.Fprintf(f.writer, "Time:  %dms\n\n", summary.Duration.Milliseconds())
	return nil
}
