package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/logging"
	"github.com/appnet-org/codecbench/pkg/pool"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunConfig controls how every trial of a run is executed.
type RunConfig struct {
	Iterations      int
	Warmup          int
	Workers         int
	Ops             []Op
	Oracle          OracleMode
	PoolCapacity    int
	PoolNonBlocking bool
	DrainTimeout    time.Duration
}

// DefaultRunConfig returns the settings used when no option overrides them.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Iterations:   10000,
		Warmup:       1000,
		Workers:      1,
		Ops:          append([]Op(nil), AllOps...),
		Oracle:       OracleDeep,
		PoolCapacity: pool.DefaultCapacity,
		DrainTimeout: 5 * time.Second,
	}
}

// Validate rejects settings no trial can run with.
func (c *RunConfig) Validate() error {
	switch {
	case c.Iterations <= 0:
		return fmt.Errorf("iterations must be positive, got %d: %w", c.Iterations, ErrInvalidConfig)
	case c.Warmup < 0:
		return fmt.Errorf("warmup must not be negative, got %d: %w", c.Warmup, ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d: %w", c.Workers, ErrInvalidConfig)
	case len(c.Ops) == 0:
		return fmt.Errorf("no ops selected: %w", ErrInvalidConfig)
	case c.PoolCapacity <= 0:
		return fmt.Errorf("pool capacity must be positive, got %d: %w", c.PoolCapacity, ErrInvalidConfig)
	case c.DrainTimeout <= 0:
		return fmt.Errorf("drain timeout must be positive, got %s: %w", c.DrainTimeout, ErrInvalidConfig)
	}
	for _, op := range c.Ops {
		if op != OpEncode && op != OpDecode {
			return fmt.Errorf("op %q: %w", op, ErrInvalidConfig)
		}
	}
	if _, err := ParseOracleMode(string(c.Oracle)); err != nil {
		return err
	}
	return nil
}

// RunOption configures a Runner. Options are applied in order, so later
// options override earlier ones.
type RunOption func(*Runner)

// WithIterations sets the number of measured calls per trial.
func WithIterations(n int) RunOption {
	return func(r *Runner) { r.cfg.Iterations = n }
}

// WithWarmup sets the number of unrecorded calls before measuring.
func WithWarmup(n int) RunOption {
	return func(r *Runner) { r.cfg.Warmup = n }
}

// WithWorkers sets how many goroutines share one trial.
func WithWorkers(n int) RunOption {
	return func(r *Runner) { r.cfg.Workers = n }
}

// WithOps selects the measured operations.
func WithOps(ops ...Op) RunOption {
	return func(r *Runner) { r.cfg.Ops = append([]Op(nil), ops...) }
}

// WithOracle selects the oracle mode.
func WithOracle(mode OracleMode) RunOption {
	return func(r *Runner) { r.cfg.Oracle = mode }
}

// WithPoolCapacity sizes the instance pool of pooled strategies.
func WithPoolCapacity(n int) RunOption {
	return func(r *Runner) { r.cfg.PoolCapacity = n }
}

// WithPoolNonBlocking makes saturated pools fail instead of waiting.
func WithPoolNonBlocking(nonBlocking bool) RunOption {
	return func(r *Runner) { r.cfg.PoolNonBlocking = nonBlocking }
}

// WithDrainTimeout bounds how long teardown waits for leases to return.
func WithDrainTimeout(d time.Duration) RunOption {
	return func(r *Runner) { r.cfg.DrainTimeout = d }
}

// WithLogger replaces the global logger for this runner.
func WithLogger(l *zap.Logger) RunOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(o Observer) RunOption {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// Runner drives trials for the strategies of a registry.
type Runner struct {
	registry  *Registry
	provider  fixture.Provider
	cfg       RunConfig
	oracle    *Oracle
	logger    *zap.Logger
	observers multiObserver
}

// NewRunner creates a runner over registry using provider for the fixture.
func NewRunner(registry *Registry, provider fixture.Provider, opts ...RunOption) (*Runner, error) {
	if registry == nil {
		return nil, fmt.Errorf("nil registry: %w", ErrInvalidConfig)
	}
	if provider == nil {
		provider = fixture.New
	}

	r := &Runner{
		registry: registry,
		provider: provider,
		cfg:      DefaultRunConfig(),
		logger:   logging.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	mode, _ := ParseOracleMode(string(r.cfg.Oracle))
	r.cfg.Oracle = mode
	r.oracle = NewOracle(mode, provider())
	return r, nil
}

// Config returns the effective run configuration.
func (r *Runner) Config() RunConfig {
	return r.cfg
}

// Run executes every configured op for each named strategy (all of them
// when no name is given). A failing trial is recorded in Report.Failures
// and never stops its siblings. Run itself fails only for an unknown name
// or a canceled ctx; the partial report is returned in the latter case.
func (r *Runner) Run(ctx context.Context, names ...string) (*Report, error) {
	strategies, err := r.registry.Select(names...)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	logger := r.logger.With(zap.String("runID", report.RunID))
	logger.Info("Starting benchmark run",
		zap.Int("strategies", len(strategies)),
		zap.Int("iterations", r.cfg.Iterations),
		zap.Int("warmup", r.cfg.Warmup),
		zap.Int("workers", r.cfg.Workers),
		zap.String("oracle", string(r.cfg.Oracle)))

	for _, s := range strategies {
		// A setup failure excludes the strategy from the rest of the run.
		var excluded *TrialResult
		for _, op := range r.cfg.Ops {
			if err := ctx.Err(); err != nil {
				report.Finished = time.Now()
				return report, fmt.Errorf("run %s canceled: %w", report.RunID, err)
			}
			if excluded != nil {
				report.Failures = append(report.Failures, r.exclude(s, op, excluded))
				continue
			}
			res, err := r.RunTrial(ctx, s, op)
			if err != nil {
				report.Failures = append(report.Failures, res)
				if errors.Is(err, ErrSetup) {
					excluded = res
				}
				continue
			}
			report.Results = append(report.Results, res)
		}
	}

	report.Finished = time.Now()
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run %s canceled: %w", report.RunID, err)
	}
	logger.Info("Benchmark run finished",
		zap.Int("results", len(report.Results)),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)))
	return report, nil
}

// RunTrial runs the full lifecycle of one (strategy, op) trial. The
// returned result is never nil; on failure it carries the error and no
// samples.
func (r *Runner) RunTrial(ctx context.Context, s Strategy, op Op) (*TrialResult, error) {
	t := NewTrial(s, op, r.logger)
	r.observers.TrialStarted(s.Name(), op)

	samples, err := r.execute(ctx, t)

	// Teardown is not bound to ctx: an aborted trial still drains its pool.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.DrainTimeout)
	closeErr := t.Close(closeCtx)
	cancel()

	if err == nil {
		if closeErr != nil {
			err = t.fail(closeErr)
		} else if terr := t.transition(StateDone); terr != nil {
			err = t.fail(terr)
		}
	} else if closeErr != nil {
		r.logger.Warn("Closing failed session",
			zap.String("strategy", s.Name()),
			zap.String("op", string(op)),
			zap.Error(closeErr))
	}

	res := &TrialResult{
		Strategy:    s.Name(),
		Family:      s.Family(),
		Op:          op,
		EncodedSize: t.EncodedSize(),
		State:       t.State(),
	}
	if err != nil {
		res.Err = err
		r.logger.Error("Trial failed",
			zap.String("strategy", s.Name()),
			zap.String("op", string(op)),
			zap.String("kind", string(Kind(err))),
			zap.Error(err))
		r.observers.TrialFailed(s.Name(), op, err)
		return res, err
	}

	res.Samples = samples
	r.logger.Info("Trial finished",
		zap.String("strategy", s.Name()),
		zap.String("op", string(op)),
		zap.Int("encodedSize", res.EncodedSize),
		zap.Int("samples", len(samples)))
	r.observers.TrialDone(res)
	return res, nil
}

// exclude records op as failed because an earlier trial of s could not be
// set up. The strategy is not set up again.
func (r *Runner) exclude(s Strategy, op Op, cause *TrialResult) *TrialResult {
	r.logger.Warn("Skipping trial of excluded strategy",
		zap.String("strategy", s.Name()),
		zap.String("op", string(op)),
		zap.String("failedOp", string(cause.Op)))
	return &TrialResult{
		Strategy: s.Name(),
		Family:   s.Family(),
		Op:       op,
		State:    StateFailed,
		Err: &TrialError{
			Strategy: s.Name(),
			Op:       op,
			Phase:    StateUnstarted,
			Err:      fmt.Errorf("excluded after %s setup failed: %w", cause.Op, cause.Err),
		},
	}
}

func (r *Runner) execute(ctx context.Context, t *Trial) ([]Sample, error) {
	opts := SetupOptions{
		PoolCapacity:    r.cfg.PoolCapacity,
		PoolNonBlocking: r.cfg.PoolNonBlocking,
	}
	if err := t.Setup(r.provider, r.oracle, opts); err != nil {
		return nil, err
	}
	r.observers.SetupDone(t.strategy.Name(), t.op, t.EncodedSize())

	if err := t.transition(StateWarming); err != nil {
		return nil, t.fail(err)
	}
	if _, err := r.measure(ctx, t, r.cfg.Warmup, false); err != nil {
		return nil, t.fail(err)
	}

	if err := t.transition(StateMeasuring); err != nil {
		return nil, t.fail(err)
	}
	samples, err := r.measure(ctx, t, r.cfg.Iterations, true)
	if err != nil {
		return nil, t.fail(err)
	}

	if err := t.transition(StateTearingDown); err != nil {
		return nil, t.fail(err)
	}
	return samples, nil
}

// measure runs n iterations spread over the configured workers. Workers
// pull iteration indices from a shared counter until it is exhausted or
// the group is canceled. The first error cancels the group, and measure
// returns only after every worker has stopped, so no pooled instance is
// still checked out when it does.
func (r *Runner) measure(ctx context.Context, t *Trial, n int, record bool) ([]Sample, error) {
	if n == 0 {
		return nil, nil
	}

	var (
		next    atomic.Int64
		mu      sync.Mutex
		samples []Sample
	)
	if record {
		samples = make([]Sample, 0, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		worker := w
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				if next.Add(1) > int64(n) {
					return nil
				}
				s, err := t.Iterate(worker, r.oracle)
				if err != nil {
					return err
				}
				if !record {
					continue
				}
				mu.Lock()
				samples = append(samples, s)
				mu.Unlock()
				r.observers.Sample(s)
			}
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return samples, nil
}
