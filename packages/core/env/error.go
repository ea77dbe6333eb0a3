package env

import (
	"errors"

	"github.com/giantswarm/microerror"
)

var envFileError = &microerror.Error{
	Kind: "envFileError",
}

// IsEnvFile asserts envFileError.
func IsEnvFile(err error) bool {
	return errors.Is(err, envFileError)
}
