package bench

import (
	"fmt"
	"strings"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// OracleMode selects how much of a decoded value is compared.
type OracleMode string

const (
	// OracleIdentity compares the identifying field only.
	OracleIdentity OracleMode = "id"
	// OracleDeep compares every field.
	OracleDeep OracleMode = "deep"
)

// ParseOracleMode accepts "id", "identity" and "deep".
func ParseOracleMode(s string) (OracleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "id", "identity":
		return OracleIdentity, nil
	case "", "deep":
		return OracleDeep, nil
	default:
		return "", fmt.Errorf("oracle %q: %w", s, ErrInvalidConfig)
	}
}

// Oracle checks decoded values against the canonical fixture. It is
// read-only after construction and safe for concurrent use.
type Oracle struct {
	mode OracleMode
	want *fixture.User
}

// NewOracle builds an oracle for want. want is copied.
func NewOracle(mode OracleMode, want *fixture.User) *Oracle {
	if mode == "" {
		mode = OracleDeep
	}
	return &Oracle{mode: mode, want: want.Clone()}
}

// Mode returns the comparison mode.
func (o *Oracle) Mode() OracleMode {
	return o.mode
}

// Check returns a *CorrectnessError if got diverges from the fixture.
func (o *Oracle) Check(got *fixture.User) error {
	if got == nil {
		return &CorrectnessError{Field: "value", Want: o.want.ID, Got: nil}
	}
	if got.ID != o.want.ID {
		return &CorrectnessError{Field: "ID", Want: o.want.ID, Got: got.ID}
	}
	if o.mode == OracleIdentity {
		return nil
	}
	// Codecs disagree on whether an empty list decodes as nil.
	if diff := cmp.Diff(o.want, got, cmpopts.EquateEmpty()); diff != "" {
		return &CorrectnessError{Field: "User", Diff: diff}
	}
	return nil
}

// CheckSize enforces that an encode produced the same length as the probe
// encode done at setup.
func CheckSize(want, got int) error {
	if want != got {
		return &CorrectnessError{Field: "encoded size", Want: want, Got: got}
	}
	return nil
}
