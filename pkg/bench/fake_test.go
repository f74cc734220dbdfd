package bench

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/pool"
)

// fakeStrategy encodes a User as its ID and decodes by rebuilding the
// canonical fixture with that ID. Hooks replace either direction.
type fakeStrategy struct {
	name     string
	pooled   bool
	setupErr error
	encodeFn func(call int32, u *fixture.User) ([]byte, error)
	decodeFn func(call int32, data []byte) (*fixture.User, error)

	setups  atomic.Int32
	encodes atomic.Int32
	decodes atomic.Int32
	shared  atomic.Int32

	mu       sync.Mutex
	sessions []*fakeSession
}

func (f *fakeStrategy) Name() string   { return f.name }
func (f *fakeStrategy) Family() Family { return FamilyNative }
func (f *fakeStrategy) Pooled() bool   { return f.pooled }

func (f *fakeStrategy) Setup(opts SetupOptions) (Session, error) {
	f.setups.Add(1)
	if f.setupErr != nil {
		return nil, f.setupErr
	}
	s := &fakeSession{f: f}
	if f.pooled {
		popts := []pool.Option[*fakeCodec]{pool.WithName[*fakeCodec](f.name)}
		if opts.PoolNonBlocking {
			popts = append(popts, pool.WithNonBlocking[*fakeCodec]())
		}
		p, err := pool.New(opts.PoolCapacity, func() (*fakeCodec, error) { return &fakeCodec{}, nil }, popts...)
		if err != nil {
			return nil, err
		}
		s.pool = p
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeStrategy) lastSession() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type fakeCodec struct {
	busy atomic.Bool
}

type fakeSession struct {
	f        *fakeStrategy
	pool     *pool.Pool[*fakeCodec]
	closes   atomic.Int32
	closeErr error
}

func (s *fakeSession) withCodec(fn func() error) error {
	if s.pool == nil {
		return fn()
	}
	return s.pool.Do(context.Background(), func(c *fakeCodec) error {
		if !c.busy.CompareAndSwap(false, true) {
			s.f.shared.Add(1)
		}
		defer c.busy.Store(false)
		return fn()
	})
}

func (s *fakeSession) Encode(u *fixture.User) ([]byte, error) {
	call := s.f.encodes.Add(1)
	var data []byte
	err := s.withCodec(func() error {
		var err error
		if s.f.encodeFn != nil {
			data, err = s.f.encodeFn(call, u)
			return err
		}
		data = []byte(u.ID)
		return nil
	})
	return data, err
}

func (s *fakeSession) Decode(data []byte) (*fixture.User, error) {
	call := s.f.decodes.Add(1)
	var u *fixture.User
	err := s.withCodec(func() error {
		var err error
		if s.f.decodeFn != nil {
			u, err = s.f.decodeFn(call, data)
			return err
		}
		if len(data) == 0 {
			return errors.New("empty payload")
		}
		u = fixture.New()
		u.ID = string(data)
		return nil
	})
	return u, err
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.closes.Add(1)
	if s.pool != nil {
		if err := s.pool.Close(ctx); err != nil {
			return err
		}
	}
	return s.closeErr
}

type recordingObserver struct {
	NopObserver
	started atomic.Int32
	setups  atomic.Int32
	samples atomic.Int32
	failed  atomic.Int32
	done    atomic.Int32
}

func (o *recordingObserver) TrialStarted(string, Op)       { o.started.Add(1) }
func (o *recordingObserver) SetupDone(string, Op, int)     { o.setups.Add(1) }
func (o *recordingObserver) Sample(Sample)                 { o.samples.Add(1) }
func (o *recordingObserver) TrialFailed(string, Op, error) { o.failed.Add(1) }
func (o *recordingObserver) TrialDone(*TrialResult)        { o.done.Add(1) }
