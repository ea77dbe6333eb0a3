package fixture

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

var fixtureLoadError = &microerror.Error{
	Kind: "fixtureLoadError",
	Desc: "The fixture could not be read or parsed.",
}

// IsFixtureLoad asserts fixtureLoadError.
func IsFixtureLoad(err error) bool {
	return errors.Is(err, fixtureLoadError)
}

var invalidFixtureError = &microerror.Error{
	Kind: "invalidFixtureError",
	Desc: "The fixture parsed but describes something that cannot be checked.",
}

// IsInvalidFixture asserts invalidFixtureError.
func IsInvalidFixture(err error) bool {
	return errors.Is(err, invalidFixtureError)
}
