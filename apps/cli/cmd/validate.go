package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate fixture files without sending requests",
	Long: `Load fixture files and compile every matchesPattern: directive in
their expected headers and bodies, reporting all problems found.

Examples:
  hitmatch validate users.fixture.yaml
  hitmatch validate ./fixtures/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
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

	hasErrors := false
	for _, file := range files {
		suite, err := loader.Load(file)
		if err == nil {
			err = fixture.Check(suite)
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(suite.Cases))
	}

	if hasErrors {
		return exitWith(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}
