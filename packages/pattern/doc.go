// Package pattern implements the fixture convention for dynamic values.
//
// Any expected value written as a string that starts with Prefix is a
// pattern: the prefix is stripped and the remainder is compiled as a regular
// expression that must match the whole actual value. Every other value is a
// literal and must be equal to the actual value.
//
//	Age: "matchesPattern:\\d+"     # pattern
//	Server: cloudflare             # literal
//	Age: {pattern: "\\d+"}         # structured form, same as the first line
package pattern
