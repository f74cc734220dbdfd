// Package strategy holds the built-in codecs measured by codecbench. Each
// file adapts one library to bench.Strategy; nothing outside this package
// knows which library is behind a name.
package strategy

import (
	"fmt"

	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/pool"
)

type base struct {
	name   string
	family bench.Family
	pooled bool
}

func (b base) Name() string         { return b.name }
func (b base) Family() bench.Family { return b.family }
func (b base) Pooled() bool         { return b.pooled }

// newPool builds the instance pool of a pooled strategy from the run's
// setup options.
func newPool[T any](name string, opts bench.SetupOptions, factory func() (T, error)) (*pool.Pool[T], error) {
	popts := []pool.Option[T]{pool.WithName[T](name)}
	if opts.PoolNonBlocking {
		popts = append(popts, pool.WithNonBlocking[T]())
	}
	return pool.New(opts.PoolCapacity, factory, popts...)
}

func decodeErr(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, bench.ErrDecode, err)
}

func encodeErr(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, bench.ErrEncode, err)
}
