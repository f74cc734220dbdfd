package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/logging"
	"go.uber.org/zap"
)

// TimingsFile is the name of the per-sample latency dump for a trial.
func TimingsFile(strategy string, op bench.Op) string {
	return fmt.Sprintf("%s_%s_times.txt", strategy, op)
}

// SizesFile is the name of the per-sample size dump for an encode trial.
func SizesFile(strategy string, op bench.Op) string {
	return fmt.Sprintf("%s_%s_sizes.txt", strategy, op)
}

// WriteTimings writes one file per successful trial into dir with one
// nanosecond value per line, in recording order. Encode trials also get a
// sizes file. Failed trials are skipped.
func WriteTimings(dir string, r *bench.Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	for _, res := range r.Results {
		durations := res.Durations()
		ns := make([]int64, len(durations))
		for i, d := range durations {
			ns[i] = d.Nanoseconds()
		}
		if err := writeInts(filepath.Join(dir, TimingsFile(res.Strategy, res.Op)), ns); err != nil {
			return err
		}

		if res.Op != bench.OpEncode {
			continue
		}
		sizes := res.Sizes()
		vals := make([]int64, len(sizes))
		for i, s := range sizes {
			vals[i] = int64(s)
		}
		if err := writeInts(filepath.Join(dir, SizesFile(res.Strategy, res.Op)), vals); err != nil {
			return err
		}
	}
	logging.Debug("Wrote timing data", zap.String("dir", dir), zap.Int("trials", len(r.Results)))
	return nil
}

func writeInts(path string, vals []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	var buf []byte
	for _, v := range vals {
		buf = strconv.AppendInt(buf[:0], v, 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
