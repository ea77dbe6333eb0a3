// Package runner executes fixture files and collects their results.
//
// It provides functionality for:
//   - Running every case of a fixture file against a live API
//   - Variable resolution from environments, dotenv files and the suite
//   - Parallel execution with configurable concurrency and a request rate
//   - Capturing response values for later cases
//   - Latency percentiles across a run
//
// Each case ends up passed, failed (its report lists every mismatch),
// errored (the request could not be sent or the fixture is broken) or
// skipped.
package runner
