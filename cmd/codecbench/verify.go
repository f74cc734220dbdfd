package main

import (
	"context"
	"fmt"
	"time"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [strategies...]",
		Short: "Round-trip the fixture once through each strategy",
		Long: `Verify encodes the fixture once with each strategy, decodes the result
and compares it field by field with the original. It exits non-zero if any
strategy fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategies, err := opts.registry.Select(args...)
			if err != nil {
				return err
			}

			setup := bench.SetupOptions{
				PoolCapacity:    opts.cfg.Run.PoolCapacity,
				PoolNonBlocking: opts.cfg.Run.PoolNonBlocking,
			}
			oracle := bench.NewOracle(bench.OracleDeep, fixture.New())
			out := cmd.OutOrStdout()

			failed := 0
			for _, s := range strategies {
				size, err := verifyStrategy(cmd.Context(), s, setup, oracle, opts.cfg.Run.DrainTimeout)
				if err != nil {
					failed++
					logging.Error("Round trip failed", zap.String("strategy", s.Name()), zap.Error(err))
					fmt.Fprintf(out, "%-12s FAIL [%s] %v\n", s.Name(), bench.Kind(err), err)
					continue
				}
				fmt.Fprintf(out, "%-12s ok   %d bytes\n", s.Name(), size)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d strategies failed verification", failed, len(strategies))
			}
			return nil
		},
	}
}

// verifyStrategy sets up a decode trial, which encodes the fixture once,
// decodes it and checks the result. Panics in the codec are reported as
// errors.
func verifyStrategy(ctx context.Context, s bench.Strategy, opts bench.SetupOptions, oracle *bench.Oracle, drain time.Duration) (size int, err error) {
	t := bench.NewTrial(s, bench.OpDecode, logging.L())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
		defer cancel()
		if cerr := t.Close(closeCtx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := t.Setup(fixture.New, oracle, opts); err != nil {
		return t.EncodedSize(), err
	}
	return t.EncodedSize(), nil
}
