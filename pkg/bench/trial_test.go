package bench

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/pool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTrialLifecycle(t *testing.T) {
	s := &fakeStrategy{name: "lifecycle"}
	trial := NewTrial(s, OpDecode, zaptest.NewLogger(t))
	oracle := NewOracle(OracleDeep, fixture.New())
	require.Equal(t, StateUnstarted, trial.State())

	require.NoError(t, trial.Setup(fixture.New, oracle, SetupOptions{}))
	require.Equal(t, StateSettingUp, trial.State())
	require.Equal(t, []byte(fixture.CanonicalID), trial.Payload())
	require.Equal(t, len(fixture.CanonicalID), trial.EncodedSize())

	require.NoError(t, trial.transition(StateWarming))
	require.NoError(t, trial.transition(StateMeasuring))

	smp, err := trial.Iterate(3, oracle)
	require.NoError(t, err)
	require.True(t, smp.Passed)
	require.Equal(t, 3, smp.Worker)
	require.Equal(t, "lifecycle", smp.Strategy)

	require.NoError(t, trial.transition(StateTearingDown))
	require.NoError(t, trial.Close(context.Background()))
	require.NoError(t, trial.Close(context.Background()))
	require.Equal(t, int32(1), s.lastSession().closes.Load())
	require.NoError(t, trial.transition(StateDone))
	require.True(t, trial.State().Terminal())
}

func TestTrialIllegalTransitions(t *testing.T) {
	trial := NewTrial(&fakeStrategy{name: "x"}, OpEncode, nil)
	require.Error(t, trial.transition(StateMeasuring))
	require.Error(t, trial.transition(StateDone))
	require.Equal(t, StateUnstarted, trial.State())

	require.NoError(t, trial.transition(StateSettingUp))
	require.Error(t, trial.transition(StateSettingUp))
}

func TestTrialSetupTwice(t *testing.T) {
	trial := NewTrial(&fakeStrategy{name: "x"}, OpEncode, nil)
	oracle := NewOracle(OracleDeep, fixture.New())
	require.NoError(t, trial.Setup(fixture.New, oracle, SetupOptions{}))
	require.Error(t, trial.Setup(fixture.New, oracle, SetupOptions{}))
}

func TestEncodeTrialKeepsNoPayload(t *testing.T) {
	trial := NewTrial(&fakeStrategy{name: "x"}, OpEncode, nil)
	require.NoError(t, trial.Setup(fixture.New, NewOracle(OracleDeep, fixture.New()), SetupOptions{}))
	require.Nil(t, trial.Payload())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "measuring", StateMeasuring.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "state(42)", State(42).String())
}

func TestKind(t *testing.T) {
	testCases := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, ""},
		{fmt.Errorf("%w: probe: %w", ErrSetup, &CorrectnessError{Field: "ID"}), KindCorrectness},
		{fmt.Errorf("%w: bad frame", ErrDecode), KindDecode},
		{fmt.Errorf("%w: %w", ErrEncode, pool.ErrPoolExhausted), KindPool},
		{fmt.Errorf("%w: %w", ErrDecode, context.Canceled), KindCanceled},
		{fmt.Errorf("x: %w", pool.ErrLeakedCheckout), KindPool},
		{fmt.Errorf("%w: boom", ErrEncode), KindEncode},
		{fmt.Errorf("%w: boom", ErrSetup), KindSetup},
		{errors.New("mystery"), KindUnknown},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			require.Equal(t, tc.kind, Kind(tc.err))
		})
	}
}

func TestTrialErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("%w: bad frame", ErrDecode)
	err := error(&TrialError{Strategy: "capnp", Op: OpDecode, Phase: StateMeasuring, Err: cause})
	require.ErrorIs(t, err, ErrDecode)
	require.Equal(t, "capnp decode: measuring: decode failed: bad frame", err.Error())
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp(" Encode ")
	require.NoError(t, err)
	require.Equal(t, OpEncode, op)

	_, err = ParseOp("compress")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
