// Package report turns a bench.Report into the outputs a run leaves
// behind: a summary table, raw timing files and Prometheus metrics.
package report

import (
	"slices"
	"time"

	"github.com/appnet-org/codecbench/pkg/bench"
)

// Stats summarizes the samples of one successful trial.
type Stats struct {
	Count int
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
	Min   time.Duration
	Max   time.Duration
	// MsgPerSec is the single-caller rate implied by Mean.
	MsgPerSec float64
}

// Summarize computes Stats over res.Samples. A trial without samples
// yields the zero value.
func Summarize(res *bench.TrialResult) Stats {
	d := res.Durations()
	if len(d) == 0 {
		return Stats{}
	}
	slices.Sort(d)

	var total time.Duration
	for _, v := range d {
		total += v
	}
	st := Stats{
		Count: len(d),
		Mean:  total / time.Duration(len(d)),
		P50:   percentile(d, 50),
		P99:   percentile(d, 99),
		Min:   d[0],
		Max:   d[len(d)-1],
	}
	if st.Mean > 0 {
		st.MsgPerSec = float64(time.Second) / float64(st.Mean)
	}
	return st
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
