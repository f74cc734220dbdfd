package bench

import (
	"context"
	"errors"
	"fmt"

	"github.com/appnet-org/codecbench/pkg/pool"
)

// Errors
var (
	// ErrSetup marks a strategy whose session could not be prepared. The
	// strategy is excluded from the run; siblings continue.
	ErrSetup = errors.New("strategy setup failed")

	// ErrDecode marks a payload the codec rejected although it produced it.
	ErrDecode = errors.New("decode failed")

	// ErrEncode marks a codec that could not serialize the fixture.
	ErrEncode = errors.New("encode failed")

	// ErrCorrectness marks a decoded value that differs from the fixture, or
	// an encoded size that differs from the one measured at setup.
	ErrCorrectness = errors.New("correctness check failed")

	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrDuplicateStrategy = errors.New("strategy already registered")
	ErrInvalidConfig     = errors.New("invalid run configuration")
)

// Phase names the trial state in which an error happened.
type Phase = State

// TrialError is the failure of one (strategy, op) trial.
type TrialError struct {
	Strategy string
	Op       Op
	Phase    Phase
	Err      error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Strategy, e.Op, e.Phase, e.Err)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}

// CorrectnessError describes how a decoded value or an encoded payload
// diverged from what the oracle expected.
type CorrectnessError struct {
	Field string
	Want  any
	Got   any
	Diff  string
}

func (e *CorrectnessError) Error() string {
	if e.Diff != "" {
		return fmt.Sprintf("%v: %s mismatch (-want +got):\n%s", ErrCorrectness, e.Field, e.Diff)
	}
	return fmt.Sprintf("%v: %s: want %v, got %v", ErrCorrectness, e.Field, e.Want, e.Got)
}

func (e *CorrectnessError) Unwrap() error {
	return ErrCorrectness
}

// ErrorKind classifies a trial failure for logs and metrics.
type ErrorKind string

const (
	KindSetup       ErrorKind = "setup"
	KindDecode      ErrorKind = "decode"
	KindEncode      ErrorKind = "encode"
	KindCorrectness ErrorKind = "correctness"
	KindPool        ErrorKind = "pool"
	KindCanceled    ErrorKind = "canceled"
	KindUnknown     ErrorKind = "unknown"
)

// Kind returns the class of err. The most specific cause wins: a pool or
// context error surfacing through an encode or decode is reported as such,
// and a setup probe rejected by the oracle is a correctness failure.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCorrectness):
		return KindCorrectness
	case errors.Is(err, pool.ErrPoolExhausted),
		errors.Is(err, pool.ErrPoolClosed),
		errors.Is(err, pool.ErrLeakedCheckout):
		return KindPool
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrEncode):
		return KindEncode
	case errors.Is(err, ErrSetup):
		return KindSetup
	default:
		return KindUnknown
	}
}
