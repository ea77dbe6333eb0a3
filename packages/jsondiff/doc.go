// Package jsondiff compares two JSON documents structurally and returns
// every difference between them in a single pass.
//
// Objects must have exactly the same keys. Arrays are compared by position,
// or as multisets when Options.IgnoreArrayOrder is set. Scalars are compared
// by type and value, with numbers compared numerically. An expected string
// leaf written with the pattern.Prefix directive is matched as a regular
// expression against the printable form of the actual leaf.
//
// Paths address a node in its own document: the root is the empty string,
// object members are joined with a dot and array elements use [i], as in
// data[0].name. Keys that are not plain identifiers are quoted: ["a.b"].
package jsondiff
