package history

import (
	"errors"

	"github.com/giantswarm/microerror"
)

var invalidConfigError = &microerror.Error{
	Kind: "invalidConfigError",
}

// IsInvalidConfig asserts invalidConfigError.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, invalidConfigError)
}

var notFoundError = &microerror.Error{
	Kind: "notFoundError",
}

// IsNotFound asserts notFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, notFoundError)
}

var ambiguousIDError = &microerror.Error{
	Kind: "ambiguousIDError",
	Desc: "The run ID prefix matches more than one run.",
}

// IsAmbiguousID asserts ambiguousIDError.
func IsAmbiguousID(err error) bool {
	return errors.Is(err, ambiguousIDError)
}

var storeError = &microerror.Error{
	Kind: "storeError",
}

// IsStore asserts storeError.
func IsStore(err error) bool {
	return errors.Is(err, storeError)
}
