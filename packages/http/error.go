package http

import (
	"errors"

	"github.com/giantswarm/microerror"
)

var transportError = &microerror.Error{
	Kind: "transportError",
	Desc: "The request could not be completed, no response is available to validate.",
}

// IsTransport asserts transportError.
func IsTransport(err error) bool {
	return errors.Is(err, transportError)
}

var invalidURLError = &microerror.Error{
	Kind: "invalidURLError",
}

// IsInvalidURL asserts invalidURLError.
func IsInvalidURL(err error) bool {
	return errors.Is(err, invalidURLError)
}
