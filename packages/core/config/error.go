package config

import (
	"errors"

	"github.com/giantswarm/microerror"
)

var invalidConfigFileError = &microerror.Error{
	Kind: "invalidConfigFileError",
}

// IsInvalidConfigFile asserts invalidConfigFileError.
func IsInvalidConfigFile(err error) bool {
	return errors.Is(err, invalidConfigFileError)
}
