// Command codecbench measures how fast each registered codec serializes and
// deserializes the benchmark fixture, checking every decoded value.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/appnet-org/codecbench/internal/config"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/logging"
	"github.com/appnet-org/codecbench/pkg/strategy"
	"github.com/spf13/cobra"
)

// options is shared by every subcommand. cfg is filled in by the root
// command's PersistentPreRunE.
type options struct {
	configPath string
	cfg        *config.Config
	registry   *bench.Registry
}

func newRootCmd(registry *bench.Registry) *cobra.Command {
	opts := &options{registry: registry}
	root := &cobra.Command{
		Use:          "codecbench",
		Short:        "Benchmark serialization strategies on a fixed fixture",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := logging.Init(&cfg.Log); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")

	root.AddCommand(
		newRunCmd(opts),
		newListCmd(opts),
		newVerifyCmd(opts),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(strategy.Builtin()).ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
