package report

import (
	"fmt"
	"sync"

	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "codecbench"

var _ bench.Observer = (*PrometheusSink)(nil)

// PrometheusSink is a bench.Observer that records samples, encoded sizes
// and failures into its own registry. Samples and sizes are published only
// once a trial is done, and a strategy that fails any trial has all of its
// duration and size series removed; only its failure counter remains.
type PrometheusSink struct {
	bench.NopObserver

	mu     sync.Mutex
	failed map[string]bool

	registry    *prometheus.Registry
	duration    *prometheus.HistogramVec
	encodedSize *prometheus.GaugeVec
	failures    *prometheus.CounterVec
}

// NewPrometheusSink creates a sink with a private registry.
func NewPrometheusSink() *PrometheusSink {
	s := &PrometheusSink{
		failed:   make(map[string]bool),
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "sample_duration_seconds",
				Help:      "Latency of one measured encode or decode call",
				// 100ns to ~3.3ms
				Buckets: prometheus.ExponentialBuckets(100e-9, 2, 16),
			},
			[]string{"strategy", "op"},
		),
		encodedSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "encoded_bytes",
				Help:      "Encoded size of the fixture per strategy",
			},
			[]string{"strategy"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "trial_failures_total",
				Help:      "Failed trials by strategy, op and error kind",
			},
			[]string{"strategy", "op", "kind"},
		),
	}
	s.registry.MustRegister(s.duration, s.encodedSize, s.failures)
	return s
}

// Registry exposes the sink's registry, e.g. for an HTTP handler.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *PrometheusSink) TrialDone(res *bench.TrialResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed[res.Strategy] {
		return
	}
	hist := s.duration.WithLabelValues(res.Strategy, string(res.Op))
	for _, sample := range res.Samples {
		hist.Observe(sample.Elapsed.Seconds())
	}
	s.encodedSize.WithLabelValues(res.Strategy).Set(float64(res.EncodedSize))
}

func (s *PrometheusSink) TrialFailed(strategy string, op bench.Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[strategy] = true
	s.duration.DeletePartialMatch(prometheus.Labels{"strategy": strategy})
	s.encodedSize.DeleteLabelValues(strategy)
	s.failures.WithLabelValues(strategy, string(op), string(bench.Kind(err))).Inc()
}

// WriteTextfile writes every metric to path in the node_exporter textfile
// collector format.
func (s *PrometheusSink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
