package jsondiff

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

var invalidJSONError = &microerror.Error{
	Kind: "invalidJSONError",
	Desc: "The document could not be parsed as JSON, so there is nothing to compare.",
}

// IsInvalidJSON asserts invalidJSONError.
func IsInvalidJSON(err error) bool {
	return errors.Is(err, invalidJSONError)
}

var unknownKindError = &microerror.Error{
	Kind: "unknownKindError",
}
