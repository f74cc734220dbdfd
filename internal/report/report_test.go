package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func result(strategy string, op bench.Op, size int, elapsed ...time.Duration) *bench.TrialResult {
	res := &bench.TrialResult{
		Strategy:    strategy,
		Family:      bench.FamilyBinaryReflect,
		Op:          op,
		EncodedSize: size,
		State:       bench.StateDone,
	}
	for i, d := range elapsed {
		res.Samples = append(res.Samples, bench.Sample{
			Strategy: strategy,
			Op:       op,
			Elapsed:  d,
			Size:     size,
			Passed:   true,
			Worker:   i % 2,
		})
	}
	return res
}

func failure(strategy string, op bench.Op, err error) *bench.TrialResult {
	return &bench.TrialResult{
		Strategy: strategy,
		Family:   bench.FamilyNative,
		Op:       op,
		State:    bench.StateFailed,
		Err:      &bench.TrialError{Strategy: strategy, Op: op, Phase: bench.StateSettingUp, Err: err},
	}
}

func testReport() *bench.Report {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &bench.Report{
		RunID:    "run-1",
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Results: []*bench.TrialResult{
			result("cbor", bench.OpEncode, 120, 300, 100, 200),
			result("cbor", bench.OpDecode, 120, 400, 500),
		},
		Failures: []*bench.TrialResult{
			failure("broken", bench.OpDecode, fmt.Errorf("%w: id mismatch", bench.ErrCorrectness)),
		},
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		elapsed []time.Duration
		want    Stats
	}{
		{
			name: "Empty",
			want: Stats{},
		},
		{
			name:    "Single",
			elapsed: []time.Duration{250},
			want:    Stats{Count: 1, Mean: 250, P50: 250, P99: 250, Min: 250, Max: 250, MsgPerSec: 4e6},
		},
		{
			name:    "Unsorted",
			elapsed: []time.Duration{400, 100, 300, 200},
			want:    Stats{Count: 4, Mean: 250, P50: 200, P99: 400, Min: 100, Max: 400, MsgPerSec: 4e6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := result("s", bench.OpEncode, 1, tt.elapsed...)
			assert.Equal(t, tt.want, Summarize(res))
		})
	}

	t.Run("DoesNotReorderSamples", func(t *testing.T) {
		res := result("s", bench.OpEncode, 1, 3, 1, 2)
		Summarize(res)
		assert.Equal(t, []time.Duration{3, 1, 2}, res.Durations())
	})

	t.Run("P99OfHundred", func(t *testing.T) {
		elapsed := make([]time.Duration, 100)
		for i := range elapsed {
			elapsed[i] = time.Duration(i + 1)
		}
		st := Summarize(result("s", bench.OpDecode, 1, elapsed...))
		assert.Equal(t, time.Duration(50), st.P50)
		assert.Equal(t, time.Duration(99), st.P99)
	})
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, testReport()))
	out := buf.String()

	assert.Contains(t, out, "Run run-1 (1.5s)")
	for _, h := range summaryHeaders {
		assert.Contains(t, out, h)
	}
	assert.Contains(t, out, "cbor")
	assert.Contains(t, out, "200ns")
	assert.Contains(t, out, "450ns")

	require.Contains(t, out, "1 failed trial(s):")
	lines := strings.Split(out, "\n")
	var failLine string
	for _, l := range lines {
		if strings.Contains(l, "broken") {
			require.Empty(t, failLine, "failed strategy printed more than once")
			failLine = l
		}
	}
	assert.Contains(t, failLine, "[correctness]")
	assert.Contains(t, failLine, "id mismatch")
	assert.NotContains(t, failLine, "ns")

	t.Run("OnlyFailures", func(t *testing.T) {
		r := testReport()
		r.Results = nil
		var buf bytes.Buffer
		require.NoError(t, WriteSummary(&buf, r))
		assert.NotContains(t, buf.String(), "MSG/S")
		assert.Contains(t, buf.String(), "broken decode")
	})
}

func TestWriteTimings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile_data")
	require.NoError(t, WriteTimings(dir, testReport()))

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, "300\n100\n200\n", read("cbor_encode_times.txt"))
	assert.Equal(t, "120\n120\n120\n", read("cbor_encode_sizes.txt"))
	assert.Equal(t, "400\n500\n", read("cbor_decode_times.txt"))

	_, err := os.Stat(filepath.Join(dir, "cbor_decode_sizes.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(dir, "broken_decode_times.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPrometheusSink(t *testing.T) {
	s := NewPrometheusSink()

	s.TrialDone(result("cbor", bench.OpEncode, 120, time.Microsecond, 2*time.Microsecond))
	s.TrialFailed("broken", bench.OpDecode, fmt.Errorf("wrapped: %w", bench.ErrDecode))
	s.TrialFailed("broken", bench.OpDecode, fmt.Errorf("wrapped: %w", bench.ErrDecode))

	assert.Equal(t, 120.0, testutil.ToFloat64(s.encodedSize.WithLabelValues("cbor")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.failures.WithLabelValues("broken", "decode", "decode")))
	assert.Equal(t, 1, testutil.CollectAndCount(s.duration))

	t.Run("DoneAfterFailureIgnored", func(t *testing.T) {
		s.TrialDone(result("broken", bench.OpEncode, 80, time.Microsecond))
		assert.Equal(t, 1, testutil.CollectAndCount(s.duration))
		assert.Equal(t, 1, testutil.CollectAndCount(s.encodedSize))
	})

	t.Run("FailureAfterDoneRemovesSeries", func(t *testing.T) {
		s.TrialDone(result("json", bench.OpEncode, 200, time.Microsecond))
		require.Equal(t, 2, testutil.CollectAndCount(s.duration))
		s.TrialFailed("json", bench.OpDecode, fmt.Errorf("wrapped: %w", bench.ErrCorrectness))
		assert.Equal(t, 1, testutil.CollectAndCount(s.duration))
		assert.Equal(t, 1, testutil.CollectAndCount(s.encodedSize))
	})

	path := filepath.Join(t.TempDir(), "codecbench.prom")
	require.NoError(t, s.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `codecbench_sample_duration_seconds_count{op="encode",strategy="cbor"} 2`)
	assert.Contains(t, text, `codecbench_encoded_bytes{strategy="cbor"} 120`)
	assert.Contains(t, text, `codecbench_trial_failures_total{kind="decode",op="decode",strategy="broken"} 2`)
	assert.Contains(t, text, `codecbench_trial_failures_total{kind="correctness",op="decode",strategy="json"} 1`)
	assert.NotContains(t, text, `strategy="broken"} 80`)
	assert.NotContains(t, text, `codecbench_encoded_bytes{strategy="json"}`)
}

// stubCodec passes every check until its decode call count exceeds
// failAfter, after which it returns a user with the wrong ID.
type stubCodec struct {
	name      string
	failAfter int32
	decodes   atomic.Int32
}

func (c *stubCodec) Name() string         { return c.name }
func (c *stubCodec) Family() bench.Family { return bench.FamilyNative }
func (c *stubCodec) Pooled() bool         { return false }

func (c *stubCodec) Setup(bench.SetupOptions) (bench.Session, error) {
	return c, nil
}

func (c *stubCodec) Encode(u *fixture.User) ([]byte, error) {
	return []byte(u.ID), nil
}

func (c *stubCodec) Decode([]byte) (*fixture.User, error) {
	u := fixture.New()
	if n := c.decodes.Add(1); c.failAfter > 0 && n > c.failAfter {
		u.ID = "not-" + u.ID
	}
	return u, nil
}

func (c *stubCodec) Close(context.Context) error { return nil }

func TestPrometheusSinkDropsStrategyFailingMidRun(t *testing.T) {
	// Decode calls: one setup check per op, 5 warmup, then the measured
	// ones. The 41st call lands mid-measurement of the decode trial.
	wrong := &stubCodec{name: "wrongcodec", failAfter: 40}
	good := &stubCodec{name: "goodcodec"}
	reg := bench.NewRegistry()
	require.NoError(t, reg.Register(wrong))
	require.NoError(t, reg.Register(good))

	sink := NewPrometheusSink()
	r, err := bench.NewRunner(reg, fixture.New,
		bench.WithIterations(50),
		bench.WithWarmup(5),
		bench.WithOps(bench.OpEncode, bench.OpDecode),
		bench.WithLogger(zaptest.NewLogger(t)),
		bench.WithObserver(sink),
	)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Len(t, report.Failures, 1)
	require.ErrorIs(t, report.Failures[0].Err, bench.ErrCorrectness)
	require.Greater(t, wrong.decodes.Load(), int32(40))

	path := filepath.Join(t.TempDir(), "codecbench.prom")
	require.NoError(t, sink.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, `strategy="wrongcodec"`) {
			assert.True(t, strings.HasPrefix(line, "codecbench_trial_failures_total"), "unexpected series: %s", line)
		}
	}
	assert.Contains(t, text, `codecbench_trial_failures_total{kind="correctness",op="decode",strategy="wrongcodec"} 1`)
	assert.Contains(t, text, `codecbench_sample_duration_seconds_count{op="encode",strategy="goodcodec"} 50`)
	assert.Contains(t, text, `codecbench_sample_duration_seconds_count{op="decode",strategy="goodcodec"} 50`)
	assert.Contains(t, text, `codecbench_encoded_bytes{strategy="goodcodec"} 4`)
}
