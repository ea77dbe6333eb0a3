package pattern

import (
	"errors"

	"github.com/giantswarm/microerror"
)

var invalidPatternError = &microerror.Error{
	Kind: "invalidPatternError",
	Desc: "The fixture contains a pattern that is not a valid regular expression.",
}

// IsInvalidPattern asserts invalidPatternError. It matches errors from any
// package that wraps a failed Compile, so callers can tell a broken fixture
// apart from a failing API.
func IsInvalidPattern(err error) bool {
	return errors.Is(err, invalidPatternError)
}

var invalidDescriptorError = &microerror.Error{
	Kind: "invalidDescriptorError",
}

// IsInvalidDescriptor asserts invalidDescriptorError.
func IsInvalidDescriptor(err error) bool {
	return errors.Is(err, invalidDescriptorError)
}
