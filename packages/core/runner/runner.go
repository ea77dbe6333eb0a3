package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"

	"github.com/abdul-hamid-achik/hitmatch/packages/assertions"
	"github.com/abdul-hamid-achik/hitmatch/packages/capture"
	"github.com/abdul-hamid-achik/hitmatch/packages/core/env"
	"github.com/abdul-hamid-achik/hitmatch/packages/fixture"
	"github.com/abdul-hamid-achik/hitmatch/packages/http"
)

const (
	// DefaultConcurrency is the default number of concurrent cases in parallel mode
	DefaultConcurrency = 5
)

// Skip reasons.
const (
	SkipMarked    = "marked skip"
	SkipFiltered  = "filtered out"
	SkipBail      = "bail"
	SkipCancelled = "cancelled"
)

type Config struct {
	Logger micrologger.Logger
	// Client replaces the HTTP client built from the transport fields.
	Client *http.Client

	Environment  string
	EnvFile      string
	Environments map[string]map[string]any
	Variables    map[string]any

	BaseURL        string
	Headers        map[string]string
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	Insecure       bool
	Proxy          string
	MaxBodySize    int64

	Bail        bool
	NameFilter  string
	TagsFilter  []string
	Parallel    bool
	Concurrency int
	// Rate caps requests per second across the run, 0 is unlimited.
	Rate float64

	IgnoreArrayOrder bool
	FailOnStatus     bool
}

type Runner struct {
	logger    micrologger.Logger
	client    *http.Client
	loader    *fixture.Loader
	evaluator *assertions.Evaluator
	scheduler *scheduler
	config    Config
}

func NewRunner(config Config) (*Runner, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Rate < 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.Rate must not be negative", config)
	}

	client := config.Client
	if client == nil {
		opts := []http.ClientOption{
			http.WithLogger(config.Logger),
			http.WithFollowRedirects(config.FollowRedirect),
			http.WithValidateSSL(!config.Insecure),
		}
		if config.Timeout > 0 {
			opts = append(opts, http.WithTimeout(config.Timeout))
		}
		if config.MaxRedirects > 0 {
			opts = append(opts, http.WithMaxRedirects(config.MaxRedirects))
		}
		if config.Proxy != "" {
			opts = append(opts, http.WithProxy(config.Proxy))
		}
		if config.MaxBodySize > 0 {
			opts = append(opts, http.WithMaxBodySize(config.MaxBodySize))
		}
		if len(config.Headers) > 0 {
			opts = append(opts, http.WithDefaultHeaders(config.Headers))
		}
		client = http.NewClient(opts...)
	}

	var err error

	var loader *fixture.Loader
	{
		c := fixture.Config{
			Logger: config.Logger,
		}

		loader, err = fixture.New(c)
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	var evaluator *assertions.Evaluator
	{
		c := assertions.Config{
			Logger: config.Logger,
		}

		evaluator, err = assertions.New(c)
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	concurrency := 1
	if config.Parallel {
		concurrency = config.Concurrency
	}

	r := &Runner{
		logger:    config.Logger,
		client:    client,
		loader:    loader,
		evaluator: evaluator,
		scheduler: newScheduler(config.Rate, concurrency),
		config:    config,
	}

	return r, nil
}

// Status is the outcome of one case.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusErrored
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type CaseResult struct {
	Name       string
	Tags       []string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *http.Response
	// Report is nil when the case was skipped or errored.
	Report   *assertions.Report
	Captures map[string]any
	// Error is a transport failure or a broken fixture, never a mismatch.
	Error error
}

func (r *CaseResult) Status() Status {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Error != nil:
		return StatusErrored
	case r.Passed:
		return StatusPassed
	default:
		return StatusFailed
	}
}

type RunResult struct {
	File     string
	Suite    string
	Results  []*CaseResult
	Duration time.Duration
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Latency  Latency

	latency *latencyRecorder
}

// Success reports whether no case failed or errored.
func (r *RunResult) Success() bool {
	return r.Failed == 0 && r.Errored == 0
}

func (r *RunResult) count(c *CaseResult) {
	switch c.Status() {
	case StatusPassed:
		r.Passed++
	case StatusFailed:
		r.Failed++
	case StatusErrored:
		r.Errored++
	case StatusSkipped:
		r.Skipped++
	}
}

// RunFile loads a fixture file and runs its cases. Only a fixture that
// cannot be loaded is returned as an error; everything that goes wrong in a
// case is recorded in its CaseResult.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := r.loader.Load(path)
	if err != nil {
		return nil, microerror.Mask(err)
	}

	resolver, err := r.newResolver(suite)
	if err != nil {
		return nil, microerror.Mask(err)
	}

	return r.RunSuite(ctx, suite, resolver), nil
}

// newResolver layers variables: run wide, then the selected environment and
// dotenv files, then the suite's own.
func (r *Runner) newResolver(suite *fixture.Suite) (*env.Resolver, error) {
	resolver := env.NewResolver()
	resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Log("level", "warning", "message", fmt.Sprintf(format, args...), "suite", suite.Name)
	})

	resolver.SetVariables(r.config.Variables)

	dir := "."
	if suite.Path != "" {
		dir = filepath.Dir(suite.Path)
	}
	environment, err := env.LoadEnvironment(dir, r.config.Environment, r.config.Environments)
	if err != nil {
		return nil, microerror.Mask(err)
	}
	resolver.SetVariables(environment.Variables)

	if r.config.EnvFile != "" {
		vars, err := env.LoadDotEnv(r.config.EnvFile)
		if err != nil {
			return nil, microerror.Mask(err)
		}
		for k, v := range vars {
			resolver.SetVariable(k, v)
		}
	}

	resolver.SetVariables(suite.Variables)

	return resolver, nil
}

// RunSuite runs the cases of an already loaded suite. Results keep the case
// order whatever the execution mode.
func (r *Runner) RunSuite(ctx context.Context, suite *fixture.Suite, resolver *env.Resolver) *RunResult {
	start := time.Now()
	result := &RunResult{
		File:    suite.Path,
		Suite:   suite.Name,
		Results: make([]*CaseResult, len(suite.Cases)),
		latency: newLatencyRecorder(),
	}

	var runnable []int
	for i, c := range suite.Cases {
		if reason, skip := r.skipReason(c); skip {
			result.Results[i] = skipped(c, reason)
			continue
		}
		runnable = append(runnable, i)
	}

	if r.config.Parallel {
		r.runParallel(ctx, suite, resolver, runnable, result)
	} else {
		r.runSequential(ctx, suite, resolver, runnable, result)
	}

	for _, c := range result.Results {
		result.count(c)
	}
	result.Latency = result.latency.Summary()
	result.Duration = time.Since(start)

	r.logger.Log("level", "debug", "message", "suite finished", "suite", suite.Name, "passed", result.Passed, "failed", result.Failed, "errored", result.Errored, "skipped", result.Skipped)

	return result
}

func (r *Runner) runSequential(ctx context.Context, suite *fixture.Suite, resolver *env.Resolver, runnable []int, result *RunResult) {
	stopped := ""
	for _, i := range runnable {
		c := suite.Cases[i]

		if stopped == "" && ctx.Err() != nil {
			stopped = SkipCancelled
		}
		if stopped != "" {
			result.Results[i] = skipped(c, stopped)
			continue
		}

		cr := r.executeCase(ctx, suite, resolver, c, result.latency)
		result.Results[i] = cr

		if cr.Passed {
			for name, value := range cr.Captures {
				resolver.SetCapture(c.Name, name, value)
			}
		} else if r.config.Bail {
			stopped = SkipBail
		}
	}
}

// runParallel does not feed captures back into the resolver: cases running
// side by side cannot depend on each other.
func (r *Runner) runParallel(ctx context.Context, suite *fixture.Suite, resolver *env.Resolver, runnable []int, result *RunResult) {
	var wg sync.WaitGroup
	var bailed atomic.Bool

	for _, i := range runnable {
		c := suite.Cases[i]

		if err := r.scheduler.Acquire(ctx); err != nil {
			result.Results[i] = skipped(c, SkipCancelled)
			continue
		}
		if bailed.Load() {
			r.scheduler.Release()
			result.Results[i] = skipped(c, SkipBail)
			continue
		}

		wg.Add(1)
		go func(idx int, c *fixture.Case) {
			defer wg.Done()
			defer r.scheduler.Release()

			cr := r.executeCase(ctx, suite, resolver, c, result.latency)
			result.Results[idx] = cr
			if !cr.Passed && r.config.Bail {
				bailed.Store(true)
			}
		}(i, c)
	}

	wg.Wait()
}

func (r *Runner) skipReason(c *fixture.Case) (string, bool) {
	if c.Skip {
		return SkipMarked, true
	}
	if !matchName(c.Name, r.config.NameFilter) {
		return SkipFiltered, true
	}
	if !c.HasTag(r.config.TagsFilter...) {
		return SkipFiltered, true
	}
	return "", false
}

func skipped(c *fixture.Case, reason string) *CaseResult {
	return &CaseResult{
		Name:       c.Name,
		Tags:       c.Tags,
		Skipped:    true,
		SkipReason: reason,
	}
}

func (r *Runner) executeCase(ctx context.Context, suite *fixture.Suite, resolver *env.Resolver, c *fixture.Case, latency *latencyRecorder) *CaseResult {
	result := &CaseResult{
		Name:     c.Name,
		Tags:     c.Tags,
		Captures: make(map[string]any),
	}

	req, err := r.buildRequest(suite, resolver, c)
	if err != nil {
		r.logger.Log("level", "error", "message", "building request failed", "case", c.Name, "error", err.Error())
		result.Error = err
		return result
	}
	result.Request = req

	if err := r.scheduler.Wait(ctx); err != nil {
		result.Error = microerror.Mask(err)
		return result
	}

	start := time.Now()
	resp, err := r.client.Do(ctx, req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp
	latency.Record(resp.Duration)

	opts := assertions.Options{
		IgnoreArrayOrder: r.config.IgnoreArrayOrder,
		FailOnStatus:     r.config.FailOnStatus,
	}
	report, err := r.evaluator.Evaluate(resp, &c.Expect, opts)
	if err != nil {
		r.logger.Log("level", "error", "message", "evaluating response failed", "case", c.Name, "file", suite.Path, "error", err.Error())
		result.Error = err
		return result
	}
	result.Report = report
	result.Passed = !report.Failed()

	if result.Passed && len(c.Capture) > 0 {
		for name, value := range capture.ExtractAll(resp, c.Capture) {
			result.Captures[name] = value
		}
	}

	return result
}

func (r *Runner) buildRequest(suite *fixture.Suite, resolver *env.Resolver, c *fixture.Case) (*http.Request, error) {
	rawURL := resolver.Resolve(c.Request.URL)
	if !strings.Contains(rawURL, "://") {
		base := r.config.BaseURL
		if suite.BaseURL != "" {
			base = resolver.Resolve(suite.BaseURL)
		}
		if base != "" {
			rawURL = joinURL(base, rawURL)
		}
	}
	if names := resolver.GetUnresolvedVariables(rawURL); len(names) > 0 {
		return nil, microerror.Maskf(unresolvedVariableError, "%s: %s", rawURL, strings.Join(names, ", "))
	}

	req := http.NewRequest(c.Request.Method, rawURL)
	for k, v := range suite.Headers {
		req.SetHeader(k, resolver.Resolve(v))
	}
	for k, v := range c.Request.Headers {
		req.SetHeader(k, resolver.Resolve(v))
	}
	for k, v := range c.Request.Query {
		req.SetQueryParam(k, resolver.Resolve(v))
	}

	body, isJSON, err := c.Request.BodyText()
	if err != nil {
		return nil, microerror.Mask(err)
	}
	if body != "" {
		body = resolver.Resolve(body)
		req.SetBody(body)

		contentType := http.ContentTypeFor(body)
		if isJSON {
			contentType = "application/json"
		}
		if contentType != "" && !hasHeader(req.Headers, "Content-Type") {
			req.SetHeader("Content-Type", contentType)
		}
	}

	if c.Request.Timeout > 0 {
		req.SetTimeout(time.Duration(c.Request.Timeout) * time.Millisecond)
	}

	return req, nil
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Summary aggregates the results of several files.
type Summary struct {
	Files    int
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Duration time.Duration
	Latency  Latency
}

func Summarize(results []*RunResult, duration time.Duration) *Summary {
	s := &Summary{
		Files:    len(results),
		Duration: duration,
	}

	latency := newLatencyRecorder()
	for _, r := range results {
		s.Passed += r.Passed
		s.Failed += r.Failed
		s.Errored += r.Errored
		s.Skipped += r.Skipped
		latency.Merge(r.latency)
	}
	s.Latency = latency.Summary()

	return s
}

func (s *Summary) Total() int {
	return s.Passed + s.Failed + s.Errored + s.Skipped
}

// Success reports whether no case failed or errored.
func (s *Summary) Success() bool {
	return s.Failed == 0 && s.Errored == 0
}
