package strategy

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
)

// Set CODECBENCH_PROFILE_DIR to dump per-iteration timings, one file per
// benchmark, in nanoseconds.
var profileDir = os.Getenv("CODECBENCH_PROFILE_DIR")

// writeTimings writes timing data (in nanoseconds) to a file, one value per line
func writeTimings(filename string, timings []int64) error {
	if profileDir == "" {
		return nil
	}
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(profileDir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	for _, t := range timings {
		fmt.Fprintf(f, "%d\n", t)
	}
	return nil
}

func reportMsgPerSec(b *testing.B) {
	if b.N > 0 {
		nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
		b.ReportMetric(1e9/nsPerOp, "msg/s")
	}
}

func benchmarkWrite(b *testing.B, s bench.Strategy) {
	session := setupSession(b, s, bench.SetupOptions{})
	u := fixture.New()

	timings := make([]int64, 0, b.N)
	size := 0
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		data, err := session.Encode(u)
		elapsed := time.Since(start)
		if err != nil {
			b.Fatal(err)
		}
		size = len(data)
		timings = append(timings, elapsed.Nanoseconds())
	}
	b.StopTimer()
	reportMsgPerSec(b)
	b.ReportMetric(float64(size), "bytes")
	if err := writeTimings(s.Name()+"_write_times.txt", timings); err != nil {
		b.Logf("Failed to write timing data: %v", err)
	}
	b.StartTimer()
}

func benchmarkRead(b *testing.B, s bench.Strategy) {
	session := setupSession(b, s, bench.SetupOptions{})
	oracle := bench.NewOracle(bench.OracleIdentity, fixture.New())
	in, err := session.Encode(fixture.New())
	if err != nil {
		b.Fatal(err)
	}

	timings := make([]int64, 0, b.N)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		u, err := session.Decode(in)
		elapsed := time.Since(start)
		if err != nil {
			b.Fatal(err)
		}
		if err := oracle.Check(u); err != nil {
			b.Fatal(err)
		}
		timings = append(timings, elapsed.Nanoseconds())
	}
	b.StopTimer()
	reportMsgPerSec(b)
	if err := writeTimings(s.Name()+"_read_times.txt", timings); err != nil {
		b.Logf("Failed to write timing data: %v", err)
	}
	b.StartTimer()
}

// benchmarkParallel exercises the instance pool of pooled strategies under
// GOMAXPROCS concurrent callers.
func benchmarkParallel(b *testing.B, s bench.Strategy) {
	session := setupSession(b, s, bench.SetupOptions{})
	in, err := session.Encode(fixture.New())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		u := fixture.New()
		for pb.Next() {
			if _, err := session.Encode(u); err != nil {
				b.Error(err)
				return
			}
			got, err := session.Decode(in)
			if err != nil {
				b.Error(err)
				return
			}
			if got.ID != fixture.CanonicalID {
				b.Errorf("decoded id %q", got.ID)
				return
			}
		}
	})
	reportMsgPerSec(b)
}

func BenchmarkMsgpack_Write(b *testing.B)        { benchmarkWrite(b, NewMsgpack()) }
func BenchmarkMsgpack_Read(b *testing.B)         { benchmarkRead(b, NewMsgpack()) }
func BenchmarkMsgpack_Parallel(b *testing.B)     { benchmarkParallel(b, NewMsgpack()) }
func BenchmarkCBOR_Write(b *testing.B)           { benchmarkWrite(b, NewCBOR()) }
func BenchmarkCBOR_Read(b *testing.B)            { benchmarkRead(b, NewCBOR()) }
func BenchmarkProtobuf_Write(b *testing.B)       { benchmarkWrite(b, NewProtobuf()) }
func BenchmarkProtobuf_Read(b *testing.B)        { benchmarkRead(b, NewProtobuf()) }
func BenchmarkCapnp_Write(b *testing.B)          { benchmarkWrite(b, NewCapnp()) }
func BenchmarkCapnp_Read(b *testing.B)           { benchmarkRead(b, NewCapnp()) }
func BenchmarkFlatBuffers_Write(b *testing.B)    { benchmarkWrite(b, NewFlatBuffers()) }
func BenchmarkFlatBuffers_Read(b *testing.B)     { benchmarkRead(b, NewFlatBuffers()) }
func BenchmarkFlatBuffers_Parallel(b *testing.B) { benchmarkParallel(b, NewFlatBuffers()) }
func BenchmarkJSONIter_Write(b *testing.B)       { benchmarkWrite(b, NewJSONIter()) }
func BenchmarkJSONIter_Read(b *testing.B)        { benchmarkRead(b, NewJSONIter()) }
func BenchmarkGojay_Write(b *testing.B)          { benchmarkWrite(b, NewGojay()) }
func BenchmarkGojay_Read(b *testing.B)           { benchmarkRead(b, NewGojay()) }
func BenchmarkGob_Write(b *testing.B)            { benchmarkWrite(b, NewGob()) }
func BenchmarkGob_Read(b *testing.B)             { benchmarkRead(b, NewGob()) }
func BenchmarkSymphony_Write(b *testing.B)       { benchmarkWrite(b, NewSymphony()) }
func BenchmarkSymphony_Read(b *testing.B)        { benchmarkRead(b, NewSymphony()) }
