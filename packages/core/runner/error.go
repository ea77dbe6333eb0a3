package runner

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

var unresolvedVariableError = &microerror.Error{
	Kind: "unresolvedVariableError",
	Desc: "A {{variable}} in the request URL has no value.",
}

// IsUnresolvedVariable asserts unresolvedVariableError.
func IsUnresolvedVariable(err error) bool {
	return errors.Is(err, unresolvedVariableError)
}
