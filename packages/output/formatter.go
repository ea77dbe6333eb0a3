package output

import (
	"errors"
	"io"
	"strings"

	"github.com/giantswarm/microerror"

	"github.com/abdul-hamid-achik/hitmatch/packages/core/runner"
)

// Formats lists the names New accepts.
var Formats = []string{"console", "json", "junit", "tap"}

// Formatter renders run results. Formats that need the whole run before
// writing anything do so in Flush.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	Flush(summary *runner.Summary) error
}

var unknownFormatError = &microerror.Error{
	Kind: "unknownFormatError",
}

// IsUnknownFormat asserts unknownFormatError.
func IsUnknownFormat(err error) bool {
	return errors.Is(err, unknownFormatError)
}

type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

// New returns the formatter for format.
func New(format string, opts Options) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		consoleOpts := []ConsoleOption{WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)}
		if opts.Writer != nil {
			consoleOpts = append(consoleOpts, WithWriter(opts.Writer))
		}
		return NewConsoleFormatter(consoleOpts...), nil
	case "json":
		var jsonOpts []JSONOption
		if opts.Writer != nil {
			jsonOpts = append(jsonOpts, JSONWithWriter(opts.Writer))
		}
		return NewJSONFormatter(jsonOpts...), nil
	case "junit":
		var junitOpts []JUnitOption
		if opts.Writer != nil {
			junitOpts = append(junitOpts, JUnitWithWriter(opts.Writer))
		}
		return NewJUnitFormatter(junitOpts...), nil
	case "tap":
		var tapOpts []TAPOption
		if opts.Writer != nil {
			tapOpts = append(tapOpts, TAPWithWriter(opts.Writer))
		}
		return NewTAPFormatter(tapOpts...), nil
	default:
		return nil, microerror.Maskf(unknownFormatError, "%q, use one of %s", format, strings.Join(Formats, ", "))
	}
}
