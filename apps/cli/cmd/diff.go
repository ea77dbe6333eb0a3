package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitmatch/packages/jsondiff"
)

var (
	diffOutputFlag      string
	diffStrictOrderFlag bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <expected.json> <actual.json>",
	Short: "Compare two JSON documents",
	Long: `Compare an expected JSON document with an actual one the way response
bodies are compared: string leaves of the expected document may be
matchesPattern:<regex> directives, arrays ignore order unless
--strict-order is given, and every difference is listed.

Examples:
  hitmatch diff expected/users.json actual.json
  hitmatch diff expected/users.json actual.json --strict-order
  hitmatch diff expected/users.json actual.json --output json`,
	Args: cobra.ExactArgs(2),
	RunE: diffCommand,
}

func init() {
	diffCmd.Flags().StringVarP(&diffOutputFlag, "output", "o", "console", "Output format: console, json")
	diffCmd.Flags().BoolVar(&diffStrictOrderFlag, "strict-order", false, "Compare arrays by position")
}

func diffCommand(cmd *cobra.Command, args []string) error {
	expected, err := os.ReadFile(args[0])
	if err != nil {
		return exitWith(ExitUsageError, fmt.Errorf("failed to load %s: %w", args[0], err))
	}
	actual, err := os.ReadFile(args[1])
	if err != nil {
		return exitWith(ExitUsageError, fmt.Errorf("failed to load %s: %w", args[1], err))
	}

	logger, err := newLogger(false)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	comparer, err := jsondiff.New(jsondiff.Config{Logger: logger})
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	diffs, err := comparer.CompareBytes(actual, expected, jsondiff.Options{IgnoreArrayOrder: !diffStrictOrderFlag})
	if err != nil {
		return exitWith(ExitParseError, err)
	}

	w := cmd.OutOrStdout()
	switch diffOutputFlag {
	case "json":
		if diffs == nil {
			diffs = []jsondiff.Difference{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(diffs); err != nil {
			return exitWith(ExitConfigError, err)
		}
	case "console", "":
		if len(diffs) == 0 {
			fmt.Fprintf(w, "%s documents match\n", color.New(color.FgGreen).Sprint("✓"))
			break
		}
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(w, "%s %d difference(s)\n", red("✗"), len(diffs))
		for _, d := range diffs {
			fmt.Fprintf(w, "  %s %s\n", red("→"), d.String())
		}
	default:
		return exitWith(ExitUsageError, fmt.Errorf("unknown output format %q, use console or json", diffOutputFlag))
	}

	if len(diffs) > 0 {
		return exitWith(ExitTestFailure, nil)
	}
	return nil
}
