package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the cases of fixture files",
	Long: `List the suites and cases defined in fixture files.

Examples:
  hitmatch list users.fixture.yaml
  hitmatch list ./fixtures/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitParseError, err)
	}
	if len(files) == 0 {
		return exitWith(ExitParseError, fmt.Errorf("no fixture files found"))
	}

	logger, err := newLogger(false)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	loader, err := fixture.New(fixture.Config{Logger: logger})
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	w := cmd.OutOrStdout()
	for _, file := range files {
		suite, err := loader.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error loading %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(w, "\n%s (%s):\n", suite.Name, file)
		for _, c := range suite.Cases {
			line := fmt.Sprintf("  - %s  %s %s", c.Name, c.Request.Method, c.Request.URL)
			if c.Skip {
				line += "  [skip]"
			}
			fmt.Fprintln(w, line)
			if len(c.Tags) > 0 {
				fmt.Fprintf(w, "    tags: %s\n", strings.Join(c.Tags, ", "))
			}
		}
	}

	return nil
}
