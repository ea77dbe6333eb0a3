package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/micrologger"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hitmatch",
	Short: "HTTP API tests against recorded expectations.",
	Long: `hitmatch sends the requests described in fixture files and compares
each response with the expected status, headers and JSON body. Values
may be literals or "matchesPattern:<regex>" directives, and every
difference is reported, not just the first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(execute(os.Args[1:]))
}

// execute runs the command line and maps the outcome to an exit code.
func execute(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", ee.err)
		}
		return ee.code
	}

	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	return ExitUsageError
}

// newLogger returns the diagnostic logger. It writes to stderr only when
// verbose, so regular output stays clean.
func newLogger(verbose bool) (micrologger.Logger, error) {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return micrologger.New(micrologger.Config{IOWriter: w})
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
