package bench

import (
	"time"
)

// Sample is one timed call. Only samples that passed the oracle are kept.
type Sample struct {
	Strategy string
	Op       Op
	Elapsed  time.Duration
	Size     int
	Passed   bool
	Worker   int
}

// TrialResult is the outcome of one (strategy, op) trial. A failed trial
// carries Err and no samples.
type TrialResult struct {
	Strategy    string
	Family      Family
	Op          Op
	EncodedSize int
	Samples     []Sample
	State       State
	Err         error
}

// Failed reports whether the trial ended in an error.
func (r *TrialResult) Failed() bool {
	return r.Err != nil
}

// Durations returns the elapsed time of every sample in recording order.
func (r *TrialResult) Durations() []time.Duration {
	d := make([]time.Duration, len(r.Samples))
	for i, s := range r.Samples {
		d[i] = s.Elapsed
	}
	return d
}

// Sizes returns the output size of every sample in recording order.
func (r *TrialResult) Sizes() []int {
	sizes := make([]int, len(r.Samples))
	for i, s := range r.Samples {
		sizes[i] = s.Size
	}
	return sizes
}

// Report collects every trial of one run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []*TrialResult
	Failures []*TrialResult
}

// Result returns the successful trial for strategy and op, if any.
func (r *Report) Result(strategy string, op Op) (*TrialResult, bool) {
	for _, res := range r.Results {
		if res.Strategy == strategy && res.Op == op {
			return res, true
		}
	}
	return nil, false
}

// Failure returns the failed trial for strategy and op, if any.
func (r *Report) Failure(strategy string, op Op) (*TrialResult, bool) {
	for _, res := range r.Failures {
		if res.Strategy == strategy && res.Op == op {
			return res, true
		}
	}
	return nil, false
}
