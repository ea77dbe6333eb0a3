// Package headers validates actual response headers against the headers a
// fixture expects. Only expected headers are checked; anything else the
// server sends is ignored.
package headers

import (
	"fmt"
	"net/textproto"
	"sort"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

type Kind int

const (
	KindMissing Kind = iota
	KindPatternMismatch
	KindValueMismatch
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindPatternMismatch:
		return "pattern-mismatch"
	case KindValueMismatch:
		return "value-mismatch"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for c := Kind(0); c <= KindValueMismatch; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return microerror.Maskf(unknownKindError, "%q", text)
}

// Expected maps header names, case sensitive as received, to descriptors.
type Expected map[string]pattern.Value

// ParseExpected builds an Expected set from textual fixture values.
func ParseExpected(values map[string]string) Expected {
	expected := make(Expected, len(values))
	for name, v := range values {
		expected[name] = pattern.Parse(v)
	}
	return expected
}

// Canonical returns a copy with every name in the canonical MIME form
// net/http gives received header names, so a fixture may spell a header the
// way it appears on the wire. A name whose canonical form is already present
// keeps its own spelling.
func (e Expected) Canonical() Expected {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	canonical := make(Expected, len(e))
	for _, name := range names {
		key := textproto.CanonicalMIMEHeaderKey(name)
		if _, ok := e[key]; ok && key != name {
			key = name
		}
		canonical[key] = e[name]
	}
	return canonical
}

// Mismatch describes one expected header that was not satisfied. Actual is
// empty for KindMissing.
type Mismatch struct {
	Header   string        `json:"header"`
	Kind     Kind          `json:"kind"`
	Expected pattern.Value `json:"expected"`
	Actual   string        `json:"actual,omitempty"`
}

func (m Mismatch) String() string {
	switch m.Kind {
	case KindMissing:
		return fmt.Sprintf("missing header %q: expected %q, not found in the response", m.Header, m.Expected.String())
	case KindPatternMismatch:
		return fmt.Sprintf("header %q does not match pattern %#q, actual value: %q", m.Header, m.Expected.Text, m.Actual)
	default:
		return fmt.Sprintf("header %q does not equal the expected value: expected %q, actual %q", m.Header, m.Expected.Text, m.Actual)
	}
}

type Config struct {
	Logger micrologger.Logger
}

// Validator holds no per-call state and is safe for concurrent use.
type Validator struct {
	logger micrologger.Logger
}

func New(config Config) (*Validator, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}

	v := &Validator{
		logger: config.Logger,
	}

	return v, nil
}

// Validate returns one Mismatch for every expected header the actual set
// does not satisfy. Data mismatches never stop the loop. A pattern that does
// not compile is a broken fixture rather than a broken response, so it is
// logged and returned as an error instead of a Mismatch.
func (v *Validator) Validate(actual map[string]string, expected Expected) ([]Mismatch, error) {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []Mismatch
	for _, name := range names {
		want := expected[name]

		got, ok := actual[name]
		if !ok {
			mismatches = append(mismatches, Mismatch{Header: name, Kind: KindMissing, Expected: want})
			continue
		}

		if !want.IsPattern() {
			if got != want.Text {
				mismatches = append(mismatches, Mismatch{Header: name, Kind: KindValueMismatch, Expected: want, Actual: got})
			}
			continue
		}

		re, err := pattern.Compile(want.Text)
		if err != nil {
			v.logger.Log(
				"level", "error",
				"message", "fixture header pattern is not a valid regular expression",
				"header", name,
				"pattern", want.Text,
				"prefix", pattern.Prefix,
				"error", err.Error(),
			)
			return nil, fmt.Errorf("expected header %q: %w", name, err)
		}
		if !re.MatchString(got) {
			mismatches = append(mismatches, Mismatch{Header: name, Kind: KindPatternMismatch, Expected: want, Actual: got})
		}
	}

	return mismatches, nil
}
