// Package pool provides a bounded checkout/release pool for codec runtime
// objects that must not be used by two goroutines at once.
//
// Instances are created lazily up to the pool capacity and reused for the
// lifetime of the pool. The idle set is a buffered channel, so a waiting
// caller is woken as soon as any lease is released.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/appnet-org/codecbench/pkg/logging"
	"go.uber.org/zap"
)

// DefaultCapacity is the pool size used when callers do not pick one.
const DefaultCapacity = 16

var (
	// ErrPoolExhausted is returned by a non-blocking pool when every
	// instance is checked out and the capacity is reached.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrPoolClosed is returned by Checkout after Close has been called.
	ErrPoolClosed = errors.New("pool closed")

	// ErrLeakedCheckout is returned by Close when leases are still
	// outstanding once its context ends.
	ErrLeakedCheckout = errors.New("pool closed with outstanding checkouts")
)

// Stats is a point-in-time view of the pool.
type Stats struct {
	Capacity       int
	Created        int
	Idle           int
	InUse          int
	DoubleReleases int64
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithNonBlocking makes Checkout fail with ErrPoolExhausted instead of
// waiting for a release.
func WithNonBlocking[T any]() Option[T] {
	return func(p *Pool[T]) {
		p.blocking = false
	}
}

// WithDestroy registers a hook run on every instance dropped by Close.
func WithDestroy[T any](fn func(T)) Option[T] {
	return func(p *Pool[T]) {
		p.destroy = fn
	}
}

// WithName labels the pool in log output.
func WithName[T any](name string) Option[T] {
	return func(p *Pool[T]) {
		p.name = name
	}
}

// Pool is a bounded pool of exclusively-owned instances of T.
type Pool[T any] struct {
	name     string
	capacity int
	blocking bool
	factory  func() (T, error)
	destroy  func(T)

	idle chan T

	mu        sync.Mutex
	created   int
	inUse     int
	closed    bool
	closing   chan struct{}
	drained   chan struct{}
	drainOnce sync.Once

	doubleReleases atomic.Int64
}

// New creates a pool of at most capacity instances built by factory.
// A non-positive capacity selects DefaultCapacity.
func New[T any](capacity int, factory func() (T, error), opts ...Option[T]) (*Pool[T], error) {
	if factory == nil {
		return nil, errors.New("pool factory must not be nil")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	p := &Pool[T]{
		name:     "pool",
		capacity: capacity,
		blocking: true,
		factory:  factory,
		idle:     make(chan T, capacity),
		closing:  make(chan struct{}),
		drained:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Capacity returns the fixed maximum number of instances.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// Checkout hands out one instance for exclusive use. The returned lease must
// be released exactly once, on every exit path of the caller.
//
// Strategy:
//  1. Take an idle instance if one is available.
//  2. Otherwise create a new one while under capacity.
//  3. Otherwise fail with ErrPoolExhausted (non-blocking pools) or wait for
//     a release or for ctx to end.
func (p *Pool[T]) Checkout(ctx context.Context) (*Lease[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	select {
	case v := <-p.idle:
		p.inUse++
		p.mu.Unlock()
		return p.lease(v), nil
	default:
	}

	if p.created < p.capacity {
		// Reserve the slot before unlocking so concurrent callers cannot
		// overshoot the capacity while the factory runs.
		p.created++
		p.inUse++
		created := p.created
		p.mu.Unlock()

		v, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.inUse--
			p.signalDrainedLocked()
			p.mu.Unlock()
			return nil, fmt.Errorf("creating %s instance: %w", p.name, err)
		}
		logging.Debug("Pool instance created",
			zap.String("pool", p.name),
			zap.Int("created", created),
			zap.Int("capacity", p.capacity))
		return p.lease(v), nil
	}
	p.mu.Unlock()

	if !p.blocking {
		return nil, fmt.Errorf("%s: %d of %d instances in use: %w", p.name, p.capacity, p.capacity, ErrPoolExhausted)
	}

	select {
	case v := <-p.idle:
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.dispose(v)
			return nil, ErrPoolClosed
		}
		p.inUse++
		p.mu.Unlock()
		return p.lease(v), nil
	case <-p.closing:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do checks out an instance, runs fn with it and releases it, also when fn
// returns an error or panics.
func (p *Pool[T]) Do(ctx context.Context, fn func(T) error) error {
	l, err := p.Checkout(ctx)
	if err != nil {
		return err
	}
	defer l.Release()
	return fn(l.Value())
}

// Stats reports the current pool occupancy.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:       p.capacity,
		Created:        p.created,
		Idle:           len(p.idle),
		InUse:          p.inUse,
		DoubleReleases: p.doubleReleases.Load(),
	}
}

// Close stops new checkouts, waits until every outstanding lease has been
// released and then drops the idle instances. If ctx ends before the pool
// drains, Close returns ErrLeakedCheckout and leaves the leased instances to
// their holders.
func (p *Pool[T]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closing)
	p.signalDrainedLocked()
	outstanding := p.inUse
	p.mu.Unlock()

	if outstanding > 0 {
		logging.Debug("Waiting for pool to drain",
			zap.String("pool", p.name),
			zap.Int("inUse", outstanding))
		select {
		case <-p.drained:
		case <-ctx.Done():
			p.disposeIdle()
			return fmt.Errorf("%s: %d leases outstanding: %w: %w", p.name, p.Stats().InUse, ErrLeakedCheckout, ctx.Err())
		}
	}

	p.disposeIdle()
	return nil
}

func (p *Pool[T]) release(v T) {
	p.mu.Lock()
	p.inUse--
	if p.closed {
		p.signalDrainedLocked()
		p.mu.Unlock()
		p.dispose(v)
		return
	}
	// Never blocks: at most capacity instances exist.
	p.idle <- v
	p.mu.Unlock()
}

func (p *Pool[T]) signalDrainedLocked() {
	if p.closed && p.inUse == 0 {
		p.drainOnce.Do(func() { close(p.drained) })
	}
}

func (p *Pool[T]) disposeIdle() {
	for {
		select {
		case v := <-p.idle:
			p.dispose(v)
		default:
			return
		}
	}
}

func (p *Pool[T]) dispose(v T) {
	if p.destroy != nil {
		p.destroy(v)
	}
}

func (p *Pool[T]) lease(v T) *Lease[T] {
	return &Lease[T]{pool: p, value: v}
}

// Lease is temporary exclusive ownership of one pooled instance.
type Lease[T any] struct {
	pool     *Pool[T]
	value    T
	released atomic.Bool
}

// Value returns the leased instance. It must not be used after Release.
func (l *Lease[T]) Value() T {
	return l.value
}

// Release returns the instance to its pool. Only the first call has an
// effect; later calls are counted in Stats.DoubleReleases.
func (l *Lease[T]) Release() {
	if !l.released.CompareAndSwap(false, true) {
		l.pool.doubleReleases.Add(1)
		return
	}
	l.pool.release(l.value)
}
