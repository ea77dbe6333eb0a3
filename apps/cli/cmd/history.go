package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitmatch/packages/core/config"
	"github.com/abdul-hamid-achik/hitmatch/packages/history"
)

var (
	historyDBFlag    string
	historyLimitFlag int
	historyKeepFlag  int
	historyAllFlag   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show runs recorded in the history database",
	Long: `List runs recorded with "hitmatch run --history" (or the history
setting of the config file), newest first.

Examples:
  hitmatch history
  hitmatch history --limit 5
  hitmatch history show 3f2a
  hitmatch history prune --keep 50`,
	Args: cobra.NoArgs,
	RunE: historyListCommand,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the cases of one run, the ID may be abbreviated",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShowCommand,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  historyPruneCommand,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBFlag, "db", getEnvString("HITMATCH_HISTORY", ""), "History database, defaults to the config's history or "+history.DefaultPath+" (env: HITMATCH_HISTORY)")
	historyCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HITMATCH_CONFIG", ""), "Path to config file (env: HITMATCH_CONFIG)")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Number of runs to show")
	historyShowCmd.Flags().BoolVarP(&historyAllFlag, "all", "a", false, "Also list passed and skipped cases")
	historyPruneCmd.Flags().IntVar(&historyKeepFlag, "keep", 100, "Number of runs to keep")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func openHistory(ctx context.Context) (*history.Store, error) {
	path := historyDBFlag
	if path == "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return nil, exitWith(ExitConfigError, err)
		}
		path = cfg.History
	}
	if path == "" {
		path = history.DefaultPath
	}

	logger, err := newLogger(false)
	if err != nil {
		return nil, exitWith(ExitConfigError, err)
	}

	store, err := history.Open(ctx, history.Config{Logger: logger, Path: path})
	if err != nil {
		return nil, exitWith(ExitConfigError, err)
	}
	return store, nil
}

func historyListCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, historyLimitFlag)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	for _, run := range runs {
		writeRunLine(w, run)
	}
	return nil
}

func writeRunLine(w io.Writer, run *history.Run) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	status := green("pass")
	if !run.Success() {
		status = red("fail")
	}

	env := run.Environment
	if env == "" {
		env = "-"
	}

	fmt.Fprintf(w, "%s  %s  %s  %-10s %d passed, %d failed, %d errored, %d skipped  %dms  p95 %s\n",
		shortID(run.ID), run.StartedAt.Local().Format("2006-01-02 15:04:05"), status, env,
		run.Passed, run.Failed, run.Errored, run.Skipped, run.Duration.Milliseconds(), run.P95)
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	run, cases, err := store.Get(ctx, args[0])
	if history.IsNotFound(err) || history.IsAmbiguousID(err) {
		return exitWith(ExitUsageError, err)
	} else if err != nil {
		return exitWith(ExitConfigError, err)
	}

	w := cmd.OutOrStdout()
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold("Run"), run.ID)
	writeRunLine(w, run)
	fmt.Fprintln(w)

	file := ""
	for _, c := range cases {
		if !historyAllFlag && (c.Status == "passed" || c.Status == "skipped") {
			continue
		}
		if c.File != file {
			file = c.File
			fmt.Fprintf(w, "%s\n", bold(c.Suite+" ("+c.File+")"))
		}

		fmt.Fprintf(w, "  %s %s %s\n", c.Status, c.Name, faint(fmt.Sprintf("(%dms)", c.Duration.Milliseconds())))
		if c.SkipReason != "" {
			fmt.Fprintf(w, "    %s\n", faint(c.SkipReason))
		}
		if c.Error != "" {
			fmt.Fprintf(w, "    %s\n", red(c.Error))
		}
		if c.Report != nil {
			for _, res := range c.Report.Results() {
				fmt.Fprintf(w, "    %s %s\n", red("→"), res.Message)
			}
		}
	}

	return nil
}

func historyPruneCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(ctx, historyKeepFlag)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", n)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
