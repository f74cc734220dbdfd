// Package config loads codecbench settings. Values are layered as
// defaults, then the YAML file, then environment variables; the CLI applies
// its flags on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/logging"
	"github.com/appnet-org/codecbench/pkg/pool"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvIterations   = "CODECBENCH_ITERATIONS"
	EnvWorkers      = "CODECBENCH_WORKERS"
	EnvPoolCapacity = "CODECBENCH_POOL_CAPACITY"
)

type Config struct {
	Log    logging.Config `yaml:"log"`
	Run    RunConfig      `yaml:"run"`
	Output OutputConfig   `yaml:"output"`
}

type RunConfig struct {
	// Strategies to run; empty means every registered one.
	Strategies      []string      `yaml:"strategies"`
	Ops             []string      `yaml:"ops"`
	Iterations      int           `yaml:"iterations"`
	Warmup          int           `yaml:"warmup"`
	Workers         int           `yaml:"workers"`
	Oracle          string        `yaml:"oracle"`
	PoolCapacity    int           `yaml:"pool_capacity"`
	PoolNonBlocking bool          `yaml:"pool_nonblocking"`
	DrainTimeout    time.Duration `yaml:"drain_timeout"`
}

// OutputConfig names where results go. Empty values disable that output.
type OutputConfig struct {
	// Dir receives the per-trial timing files.
	Dir string `yaml:"dir"`
	// MetricsFile receives the Prometheus textfile dump.
	MetricsFile string `yaml:"metrics_file"`
}

// DefaultConfig mirrors bench.DefaultRunConfig.
func DefaultConfig() *Config {
	rc := bench.DefaultRunConfig()
	ops := make([]string, len(rc.Ops))
	for i, op := range rc.Ops {
		ops[i] = string(op)
	}
	return &Config{
		Log: *logging.DefaultConfig(),
		Run: RunConfig{
			Ops:             ops,
			Iterations:      rc.Iterations,
			Warmup:          rc.Warmup,
			Workers:         rc.Workers,
			Oracle:          string(rc.Oracle),
			PoolCapacity:    rc.PoolCapacity,
			PoolNonBlocking: rc.PoolNonBlocking,
			DrainTimeout:    rc.DrainTimeout,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides c with the environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvIterations, &c.Run.Iterations},
		{EnvWorkers, &c.Run.Workers},
		{EnvPoolCapacity, &c.Run.PoolCapacity},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s=%q: %w", e.key, v, bench.ErrInvalidConfig)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks the run settings the way the runner would, so a bad file
// is reported before any strategy is set up.
func (c *Config) Validate() error {
	if _, err := logging.New(&c.Log); err != nil {
		return fmt.Errorf("log: %v: %w", err, bench.ErrInvalidConfig)
	}
	rc, err := c.Run.benchConfig()
	if err != nil {
		return err
	}
	return rc.Validate()
}

func (r *RunConfig) benchConfig() (bench.RunConfig, error) {
	ops := make([]bench.Op, 0, len(r.Ops))
	for _, s := range r.Ops {
		op, err := bench.ParseOp(s)
		if err != nil {
			return bench.RunConfig{}, err
		}
		ops = append(ops, op)
	}
	oracle, err := bench.ParseOracleMode(r.Oracle)
	if err != nil {
		return bench.RunConfig{}, err
	}
	capacity := r.PoolCapacity
	if capacity == 0 {
		capacity = pool.DefaultCapacity
	}
	return bench.RunConfig{
		Iterations:      r.Iterations,
		Warmup:          r.Warmup,
		Workers:         r.Workers,
		Ops:             ops,
		Oracle:          oracle,
		PoolCapacity:    capacity,
		PoolNonBlocking: r.PoolNonBlocking,
		DrainTimeout:    r.DrainTimeout,
	}, nil
}

// RunOptions translates the run section into runner options.
func (c *Config) RunOptions() ([]bench.RunOption, error) {
	rc, err := c.Run.benchConfig()
	if err != nil {
		return nil, err
	}
	return []bench.RunOption{
		bench.WithIterations(rc.Iterations),
		bench.WithWarmup(rc.Warmup),
		bench.WithWorkers(rc.Workers),
		bench.WithOps(rc.Ops...),
		bench.WithOracle(rc.Oracle),
		bench.WithPoolCapacity(rc.PoolCapacity),
		bench.WithPoolNonBlocking(rc.PoolNonBlocking),
		bench.WithDrainTimeout(rc.DrainTimeout),
	}, nil
}
