// Package config handles configuration loading and management for hitmatch.
//
// It provides functionality for:
//   - Loading configuration from .hitmatch.yaml, .hitmatch.yml or hitmatch.config.json
//   - Default configuration values
//   - Merging command line overrides, where unset booleans keep the file value
//   - Named environments with their own variables
package config
