// Package capture extracts values from HTTP responses for use in later cases.
//
// It supports capturing values from:
//   - Response body (JSON paths, gjson or bracket syntax)
//   - Response headers (header:Name)
//   - Response status code and duration
//
// Captured values can be used in later cases via the {{caseName.captureName}}
// or {{captureName}} syntax.
package capture
