// Package cmd implements the hitmatch CLI commands using Cobra.
//
// Available commands:
//   - run: Send the requests of fixture files and compare the responses
//   - validate: Load fixtures and compile their patterns without sending
//   - list: Display the suites and cases of fixture files
//   - record: Write a baseline fixture from a live response
//   - history: Show runs recorded in the SQLite history
//   - diff: Compare two JSON documents the way response bodies are compared
//   - init: Create a config file and an example fixture
//   - version: Show hitmatch version information
//
// Commands exit with the codes declared in exitcodes.go.
package cmd
