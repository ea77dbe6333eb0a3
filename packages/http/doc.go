// Package http is the transport used by hitmatch to obtain the actual
// response of a case.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - Default headers applied to every request
//   - Response bodies read in full and connections released before return
//   - Header flattening into a single value per name
//   - A shell-quoted curl line to reproduce a request by hand
package http
