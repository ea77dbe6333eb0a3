// Package assertions checks one HTTP response against the expectations of a
// fixture case and aggregates every problem into a single Report.
//
// Three checks are made:
//   - Status code, and the reason phrase when the case names one
//   - Expected headers, literal or matchesPattern:
//   - Expected JSON body, structurally, with matchesPattern: leaves
//
// Header and body problems are collected independently so one run shows all
// of them. Broken fixtures and unparseable bodies are returned as errors and
// never appear in a Report.
package assertions
