package bench

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/appnet-org/codecbench/internal/fixture"
	"go.uber.org/zap"
)

// State is a step of the trial lifecycle.
type State int32

const (
	StateUnstarted State = iota
	StateSettingUp
	StateWarming
	StateMeasuring
	StateTearingDown
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateSettingUp:
		return "setting-up"
	case StateWarming:
		return "warming"
	case StateMeasuring:
		return "measuring"
	case StateTearingDown:
		return "tearing-down"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateUnstarted:   {StateSettingUp},
	StateSettingUp:   {StateWarming, StateFailed},
	StateWarming:     {StateMeasuring, StateFailed},
	StateMeasuring:   {StateTearingDown, StateFailed},
	StateTearingDown: {StateDone, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Trial is the state one strategy keeps for one op across all iterations.
// It is never shared between strategies.
type Trial struct {
	strategy Strategy
	op       Op
	logger   *zap.Logger

	state atomic.Int32

	session Session
	input   *fixture.User
	size    int
	payload []byte
	err     error
	closed  bool
}

// NewTrial creates an unstarted trial of op for s.
func NewTrial(s Strategy, op Op, logger *zap.Logger) *Trial {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trial{
		strategy: s,
		op:       op,
		logger:   logger.With(zap.String("strategy", s.Name()), zap.String("op", string(op))),
	}
}

// State returns the current lifecycle state.
func (t *Trial) State() State {
	return State(t.state.Load())
}

// EncodedSize is the byte length of the probe encode done at setup.
func (t *Trial) EncodedSize() int {
	return t.size
}

// Payload is the pre-encoded input of a decode trial.
func (t *Trial) Payload() []byte {
	return t.payload
}

// Err returns the error that failed the trial, if any.
func (t *Trial) Err() error {
	return t.err
}

func (t *Trial) transition(to State) error {
	from := t.State()
	if !canTransition(from, to) {
		return fmt.Errorf("trial %s %s: illegal transition %s -> %s", t.strategy.Name(), t.op, from, to)
	}
	t.state.Store(int32(to))
	t.logger.Debug("Trial state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	return nil
}

// fail records err against the current phase and moves to StateFailed.
func (t *Trial) fail(err error) error {
	phase := t.State()
	var te *TrialError
	if !errors.As(err, &te) {
		err = &TrialError{Strategy: t.strategy.Name(), Op: t.op, Phase: phase, Err: err}
	}
	t.err = err
	if phase != StateFailed {
		t.state.Store(int32(StateFailed))
		t.logger.Debug("Trial state changed",
			zap.Stringer("from", phase),
			zap.Stringer("to", StateFailed))
	}
	return err
}

// Setup acquires the strategy session and probes it: exactly one encode of
// the fixture, whose size is recorded, followed by one decode checked by
// the oracle. A decode trial keeps the probe payload as its input.
func (t *Trial) Setup(provider fixture.Provider, oracle *Oracle, opts SetupOptions) error {
	if err := t.transition(StateSettingUp); err != nil {
		return err
	}

	session, err := t.strategy.Setup(opts)
	if err != nil {
		return t.fail(fmt.Errorf("%w: %w", ErrSetup, err))
	}
	if session == nil {
		return t.fail(fmt.Errorf("%w: nil session", ErrSetup))
	}
	t.session = session
	t.input = provider()

	data, err := encode(session, t.input)
	if err != nil {
		return t.fail(fmt.Errorf("%w: probe encode: %w", ErrSetup, err))
	}
	t.size = len(data)

	got, err := decode(session, data)
	if err != nil {
		return t.fail(fmt.Errorf("%w: probe decode: %w", ErrSetup, err))
	}
	if err := oracle.Check(got); err != nil {
		return t.fail(fmt.Errorf("%w: probe: %w", ErrSetup, err))
	}

	if t.op == OpDecode {
		t.payload = data
	}
	t.logger.Info("Strategy set up",
		zap.String("family", string(t.strategy.Family())),
		zap.Bool("pooled", t.strategy.Pooled()),
		zap.Int("encodedSize", t.size))
	return nil
}

// Iterate performs one timed call. Only the encode or decode call itself
// is inside the timed window; the oracle runs after it.
func (t *Trial) Iterate(worker int, oracle *Oracle) (Sample, error) {
	s := Sample{Strategy: t.strategy.Name(), Op: t.op, Worker: worker}

	switch t.op {
	case OpEncode:
		start := time.Now()
		data, err := encode(t.session, t.input)
		s.Elapsed = time.Since(start)
		if err != nil {
			return s, err
		}
		s.Size = len(data)
		if err := CheckSize(t.size, s.Size); err != nil {
			return s, err
		}
	case OpDecode:
		start := time.Now()
		got, err := decode(t.session, t.payload)
		s.Elapsed = time.Since(start)
		if err != nil {
			return s, err
		}
		s.Size = len(t.payload)
		if err := oracle.Check(got); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("op %q: %w", t.op, ErrInvalidConfig)
	}

	s.Passed = true
	return s, nil
}

// Close releases the session. It runs once whatever state the trial is in;
// later calls return nil.
func (t *Trial) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.session == nil {
		return nil
	}
	if err := t.session.Close(ctx); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

func encode(s Session, u *fixture.User) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrEncode, r)
		}
	}()
	data, err = s.Encode(u)
	if err != nil && !errors.Is(err, ErrEncode) {
		err = fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, err
}

func decode(s Session, data []byte) (u *fixture.User, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDecode, r)
		}
	}()
	u, err = s.Decode(data)
	if err != nil && !errors.Is(err, ErrDecode) {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return u, err
}
