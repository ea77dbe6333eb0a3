// Package history keeps past runs in a SQLite database so failures can be
// compared across runs. Each run stores its totals, latency percentiles and
// one row per case including the mismatch report.
package history
