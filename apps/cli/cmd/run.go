package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/giantswarm/micrologger"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitmatch/packages/core/config"
	"github.com/abdul-hamid-achik/hitmatch/packages/core/env"
	"github.com/abdul-hamid-achik/hitmatch/packages/core/runner"
	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
	"github.com/abdul-hamid-achik/hitmatch/packages/history"
	"github.com/abdul-hamid-achik/hitmatch/packages/http"
	"github.com/abdul-hamid-achik/hitmatch/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run the cases of fixture files",
	Long: `Run the cases defined in fixture files (*.fixture.yaml, *.fixture.json)
and compare every response with its expectations.

Examples:
  hitmatch run users.fixture.yaml
  hitmatch run ./fixtures/ --env staging
  hitmatch run ./fixtures/ --tags smoke --parallel --rate 20
  hitmatch run ./fixtures/ --output junit --output-file report.xml
  hitmatch run ./fixtures/ --strict-order --history .hitmatch/history.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag         string
	envFileFlag     string
	configFlag      string
	nameFlag        string
	tagsFlag        string
	varsFlag        []string
	baseURLFlag     string
	verboseFlag     int // 0=off, 1=-v, 2=-vv also logs diagnostics
	quietFlag       bool
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
	bailFlag        bool
	timeoutFlag     string
	parallelFlag    bool
	concurrencyFlag int
	rateFlag        float64
	strictOrderFlag bool
	noFailOnStatus  bool
	watchFlag       bool
	historyFlag     string
	proxyFlag       string
	insecureFlag    bool
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("HITMATCH_ENV", ""), "Environment to use, defaults to the config's defaultEnvironment (env: HITMATCH_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITMATCH_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITMATCH_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("HITMATCH_CONFIG", ""), "Path to config file (env: HITMATCH_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only cases matching name, * matches a prefix or suffix")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("HITMATCH_TAGS", ""), "Run only cases with any of the tags (comma-separated) (env: HITMATCH_TAGS)")
	runCmd.Flags().StringArrayVar(&varsFlag, "var", nil, "Set a variable (key=value), may be repeated")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("HITMATCH_BASE_URL", ""), "Base URL for relative request URLs (env: HITMATCH_BASE_URL)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v shows requests, -vv also logs diagnostics to stderr)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("HITMATCH_QUIET", false), "Print only errors and the summary (env: HITMATCH_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITMATCH_NO_COLOR", false), "Disable colored output (env: HITMATCH_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITMATCH_OUTPUT", ""), "Output format: "+strings.Join(output.Formats, ", ")+" (env: HITMATCH_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITMATCH_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITMATCH_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITMATCH_BAIL", false), "Stop on first failure (env: HITMATCH_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITMATCH_TIMEOUT", "30s"), "Request timeout (e.g., 30s, 1m) (env: HITMATCH_TIMEOUT)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("HITMATCH_PARALLEL", false), "Run the cases of a file in parallel, captures are not shared (env: HITMATCH_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("HITMATCH_CONCURRENCY", runner.DefaultConcurrency), "Number of concurrent requests when running in parallel (env: HITMATCH_CONCURRENCY)")
	runCmd.Flags().Float64VarP(&rateFlag, "rate", "r", getEnvFloat("HITMATCH_RATE", 0), "Maximum requests per second, 0 is unlimited (env: HITMATCH_RATE)")
	runCmd.Flags().BoolVar(&strictOrderFlag, "strict-order", getEnvBool("HITMATCH_STRICT_ORDER", false), "Compare arrays by position instead of ignoring their order (env: HITMATCH_STRICT_ORDER)")
	runCmd.Flags().BoolVar(&noFailOnStatus, "compare-on-status-mismatch", false, "Keep comparing headers and body after a wrong status")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("HITMATCH_HISTORY", ""), "Record the run in this SQLite database (env: HITMATCH_HISTORY)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITMATCH_PROXY", ""), "Proxy URL for HTTP requests (env: HITMATCH_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITMATCH_INSECURE", false), "Disable SSL certificate validation (env: HITMATCH_INSECURE)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	overrides, err := flagConfig(cmd)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	cfg := fileConfig.Merge(overrides)

	variables, err := parseVars(varsFlag)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	logger, err := newLogger(verboseFlag > 1)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	format := outputFlag
	if format == "" && len(cfg.Reporters) > 0 {
		format = cfg.Reporters[0]
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return exitWith(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	newFormatter := func() (output.Formatter, error) {
		return output.New(format, output.Options{
			Writer:  out,
			Verbose: verboseFlag > 0 || cfg.GetVerbose(),
			NoColor: cfg.GetNoColor() || outputFileFlag != "",
		})
	}
	formatter, err := newFormatter()
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	quiet := quietFlag && (format == "" || strings.EqualFold(format, "console"))

	environment := envFlag
	if environment == "" {
		environment = cfg.DefaultEnvironment
	}

	r, err := runner.NewRunner(runner.Config{
		Logger:           logger,
		Environment:      environment,
		EnvFile:          envFileFlag,
		Environments:     cfg.Environments,
		Variables:        env.MergeVariables(env.LoadSystemEnv("HITMATCH_VAR_"), variables),
		BaseURL:          cfg.BaseURL,
		Headers:          cfg.Headers,
		Timeout:          cfg.TimeoutDuration(),
		FollowRedirect:   cfg.GetFollowRedirects(),
		MaxRedirects:     cfg.MaxRedirects,
		Insecure:         !cfg.GetValidateSSL(),
		Proxy:            cfg.Proxy,
		MaxBodySize:      cfg.MaxBodySize,
		Bail:             cfg.GetBail(),
		NameFilter:       nameFlag,
		TagsFilter:       splitList(tagsFlag),
		Parallel:         cfg.GetParallel(),
		Concurrency:      cfg.Concurrency,
		Rate:             cfg.Rate,
		IgnoreArrayOrder: cfg.GetIgnoreArrayOrder(),
		FailOnStatus:     cfg.GetFailOnStatus(),
	})
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.History != "" {
		store, err = history.Open(ctx, history.Config{Logger: logger, Path: cfg.History})
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		defer store.Close()
	}

	runTests := func(formatter output.Formatter) int {
		formatter.FormatHeader(version)

		files, err := collectFiles(args)
		if err != nil {
			formatter.FormatError(err)
			_ = formatter.Flush(nil)
			return ExitParseError
		}
		if len(files) == 0 {
			formatter.FormatError(fmt.Errorf("no fixture files found (%s)", strings.Join(fixture.Extensions, ", ")))
			_ = formatter.Flush(nil)
			return ExitParseError
		}

		start := time.Now()
		var (
			results    []*runner.RunResult
			loadFailed bool
		)
		for _, file := range files {
			result, err := r.RunFile(ctx, file)
			if err != nil {
				formatter.FormatError(err)
				loadFailed = true
				if cfg.GetBail() {
					break
				}
				continue
			}

			results = append(results, result)
			if !quiet {
				formatter.FormatResult(result)
			}

			if cfg.GetBail() && !result.Success() {
				break
			}
			if ctx.Err() != nil {
				break
			}
		}

		summary := runner.Summarize(results, time.Since(start))
		if err := formatter.Flush(summary); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error writing output: %v\n", err)
		}

		if store != nil {
			recordRun(ctx, logger, store, history.NewRun(environment, start, summary), results, cmd.ErrOrStderr())
		}

		return exitCode(results, loadFailed)
	}

	code := runTests(formatter)

	if !watchFlag {
		if code != ExitSuccess {
			return exitWith(code, nil)
		}
		return nil
	}

	return watch(ctx, cmd, args, func() {
		formatter, err := newFormatter()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		runTests(formatter)
	})
}

// flagConfig turns the flags given on the command line, or through their
// HITMATCH_* variables, into config overrides.
func flagConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := func(name, envKey string) bool {
		return cmd.Flags().Changed(name) || os.Getenv(envKey) != ""
	}

	c := &config.Config{
		BaseURL: baseURLFlag,
		Proxy:   proxyFlag,
		History: historyFlag,
	}

	if explicit("timeout", "HITMATCH_TIMEOUT") {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid timeout value %q: must be positive", timeoutFlag)
		}
		c.Timeout = int(d.Milliseconds())
	}
	if explicit("concurrency", "HITMATCH_CONCURRENCY") {
		if concurrencyFlag < 1 {
			return nil, fmt.Errorf("invalid concurrency %d: must be at least 1", concurrencyFlag)
		}
		c.Concurrency = concurrencyFlag
	}
	if explicit("rate", "HITMATCH_RATE") {
		if rateFlag < 0 {
			return nil, fmt.Errorf("invalid rate %g: must not be negative", rateFlag)
		}
		c.Rate = rateFlag
	}
	if explicit("insecure", "HITMATCH_INSECURE") {
		c.ValidateSSL = config.BoolPtr(!insecureFlag)
	}
	if explicit("bail", "HITMATCH_BAIL") {
		c.Bail = config.BoolPtr(bailFlag)
	}
	if explicit("parallel", "HITMATCH_PARALLEL") {
		c.Parallel = config.BoolPtr(parallelFlag)
	}
	if explicit("strict-order", "HITMATCH_STRICT_ORDER") {
		c.IgnoreArrayOrder = config.BoolPtr(!strictOrderFlag)
	}
	if cmd.Flags().Changed("compare-on-status-mismatch") {
		c.FailOnStatus = config.BoolPtr(!noFailOnStatus)
	}
	if explicit("no-color", "HITMATCH_NO_COLOR") {
		c.NoColor = config.BoolPtr(noColorFlag)
	}

	return c, nil
}

// parseVars parses repeated key=value flags.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, use key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func recordRun(ctx context.Context, logger micrologger.Logger, store *history.Store, run *history.Run, results []*runner.RunResult, stderr io.Writer) {
	// a cancelled run is still worth keeping
	if err := store.Record(context.WithoutCancel(ctx), run, results); err != nil {
		logger.Log("level", "warning", "message", "recording run in history failed", "error", err.Error())
		fmt.Fprintf(stderr, "warning: run not recorded in history: %v\n", err)
	}
}

// exitCode picks the most telling code: a fixture that cannot be loaded,
// then a failed or errored case, then a run where only the network failed.
func exitCode(results []*runner.RunResult, loadFailed bool) int {
	if loadFailed {
		return ExitParseError
	}

	var failed, errored, transport int
	for _, result := range results {
		failed += result.Failed
		for _, c := range result.Results {
			if c.Status() != runner.StatusErrored {
				continue
			}
			errored++
			if http.IsTransport(c.Error) {
				transport++
			}
		}
	}

	switch {
	case failed == 0 && errored == 0:
		return ExitSuccess
	case failed == 0 && errored == transport:
		return ExitNetworkError
	default:
		return ExitTestFailure
	}
}

// watch re-runs on changes to fixtures or JSON body files until ctx is
// cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("failed to create file watcher: %w", err))
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			dir := filepath.Dir(arg)
			if !watchedDirs[dir] {
				if err := watcher.Add(dir); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
				}
				watchedDirs[dir] = true
			}
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if path != arg && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !watchedDirs[path] {
				_ = watcher.Add(path)
				watchedDirs[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		debounce <-chan time.Time
		changed  string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !fixture.IsFixtureFile(event.Name) && !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			changed = event.Name
			debounce = time.After(WatchDebounceDelay)

		case <-debounce:
			debounce = nil
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", changed)
			rerun()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

// collectFiles discovers the fixture files of every argument, keeping
// argument order and dropping duplicates.
func collectFiles(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, arg := range args {
		found, err := fixture.Discover(arg)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			clean := filepath.Clean(f)
			if !seen[clean] {
				seen[clean] = true
				files = append(files, f)
			}
		}
	}

	return files, nil
}
