// Package bench measures interchangeable encoding strategies against one
// fixed value under a single protocol: set a strategy up once, time many
// encode or decode calls against that state, verify every decode with an
// oracle and tear the state down.
package bench

import (
	"context"
	"fmt"
	"strings"

	"github.com/appnet-org/codecbench/internal/fixture"
)

// Family describes what kind of codec a strategy wraps.
type Family string

const (
	FamilyBinaryGraph   Family = "binary-graph"
	FamilyBinaryReflect Family = "binary-reflect"
	FamilyRuntimeSchema Family = "runtime-schema"
	FamilyCompiled      Family = "schema-compiled"
	FamilyJSONBinding   Family = "json-binding"
	FamilyJSONManual    Family = "json-manual"
	FamilyNative        Family = "native"
)

// Op is the measured operation of a trial.
type Op string

const (
	OpEncode Op = "encode"
	OpDecode Op = "decode"
)

// AllOps is every op in run order.
var AllOps = []Op{OpEncode, OpDecode}

// ParseOp converts a CLI or config value into an Op.
func ParseOp(s string) (Op, error) {
	switch Op(strings.ToLower(strings.TrimSpace(s))) {
	case OpEncode:
		return OpEncode, nil
	case OpDecode:
		return OpDecode, nil
	default:
		return "", fmt.Errorf("op %q: %w", s, ErrInvalidConfig)
	}
}

// SetupOptions sizes the resources a session allocates.
type SetupOptions struct {
	// PoolCapacity bounds the codec instances of pooled strategies. Zero
	// means pool.DefaultCapacity.
	PoolCapacity int

	// PoolNonBlocking makes a saturated pool fail instead of waiting.
	PoolNonBlocking bool
}

// Strategy is one way to turn the fixture into bytes and back. A Strategy
// is stateless; everything expensive lives in the Session returned by Setup.
type Strategy interface {
	Name() string
	Family() Family

	// Pooled reports whether sessions keep a pool of codec instances.
	Pooled() bool

	Setup(opts SetupOptions) (Session, error)
}

// Session is the prepared state of a strategy. Encode and Decode may be
// called from many goroutines at once. Close is called exactly once, also
// when the trial fails.
type Session interface {
	Encode(u *fixture.User) ([]byte, error)
	Decode(data []byte) (*fixture.User, error)
	Close(ctx context.Context) error
}
