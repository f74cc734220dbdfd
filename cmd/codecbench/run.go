package main

import (
	"errors"
	"fmt"

	"github.com/appnet-org/codecbench/internal/config"
	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/internal/report"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run encode and decode trials for the selected strategies",
		Long: `Run measures every selected strategy for each selected op. Each trial
sets the strategy up, warms it, records the timed iterations and tears it
down. A failing strategy is reported and skipped; the others still run.

Examples:
  codecbench run
  codecbench run --strategies msgpack,flatbuffers --workers 8
  codecbench run --ops decode --oracle id --out profile_data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd, opts.cfg); err != nil {
				return err
			}
			return runBenchmarks(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringSlice("strategies", nil, "strategies to run (default all)")
	f.StringSlice("ops", nil, "ops to measure: encode, decode")
	f.Int("iterations", 0, "measured calls per trial")
	f.Int("warmup", 0, "unrecorded calls before measuring")
	f.Int("workers", 0, "goroutines per trial")
	f.Int("pool-capacity", 0, "instance pool size for pooled strategies")
	f.Bool("pool-nonblocking", false, "fail instead of waiting on a saturated pool")
	f.String("oracle", "", "correctness check: id or deep")
	f.String("out", "", "directory for per-trial timing files")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	return cmd
}

// applyRunFlags copies the flags the user set over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func()) {
		if err == nil && f.Changed(name) {
			apply()
		}
	}
	set("strategies", func() { cfg.Run.Strategies, err = f.GetStringSlice("strategies") })
	set("ops", func() { cfg.Run.Ops, err = f.GetStringSlice("ops") })
	set("iterations", func() { cfg.Run.Iterations, err = f.GetInt("iterations") })
	set("warmup", func() { cfg.Run.Warmup, err = f.GetInt("warmup") })
	set("workers", func() { cfg.Run.Workers, err = f.GetInt("workers") })
	set("pool-capacity", func() { cfg.Run.PoolCapacity, err = f.GetInt("pool-capacity") })
	set("pool-nonblocking", func() { cfg.Run.PoolNonBlocking, err = f.GetBool("pool-nonblocking") })
	set("oracle", func() { cfg.Run.Oracle, err = f.GetString("oracle") })
	set("out", func() { cfg.Output.Dir, err = f.GetString("out") })
	set("metrics-file", func() { cfg.Output.MetricsFile, err = f.GetString("metrics-file") })
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func runBenchmarks(cmd *cobra.Command, opts *options) error {
	cfg := opts.cfg
	runOpts, err := cfg.RunOptions()
	if err != nil {
		return err
	}
	runOpts = append(runOpts, bench.WithLogger(logging.L()))

	var sink *report.PrometheusSink
	if cfg.Output.MetricsFile != "" {
		sink = report.NewPrometheusSink()
		runOpts = append(runOpts, bench.WithObserver(sink))
	}

	runner, err := bench.NewRunner(opts.registry, fixture.New, runOpts...)
	if err != nil {
		return err
	}

	rep, runErr := runner.Run(cmd.Context(), cfg.Run.Strategies...)
	if rep == nil {
		return runErr
	}

	// A canceled run still leaves its partial results behind.
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := report.WriteSummary(cmd.OutOrStdout(), rep); err != nil {
		errs = append(errs, fmt.Errorf("writing summary: %w", err))
	}
	if cfg.Output.Dir != "" {
		if err := report.WriteTimings(cfg.Output.Dir, rep); err != nil {
			errs = append(errs, err)
		} else {
			logging.Info("Timing data written", zap.String("dir", cfg.Output.Dir))
		}
	}
	if sink != nil {
		if err := sink.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			errs = append(errs, err)
		} else {
			logging.Info("Metrics written", zap.String("path", cfg.Output.MetricsFile))
		}
	}
	return errors.Join(errs...)
}
