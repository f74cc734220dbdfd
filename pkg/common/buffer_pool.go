package common

import (
	"sync/atomic"

	"github.com/colega/zeropool"
)

// BufferPool hands out scratch byte slices for encoders that write into a
// caller-provided buffer. Buffers larger than maxRetain are dropped on Put so
// one oversized payload does not pin memory for the rest of a run.
type BufferPool struct {
	defaultSize int
	maxRetain   int
	pool        zeropool.Pool[[]byte]
	outstanding atomic.Int64
}

// NewBufferPool creates a pool whose fresh buffers have capacity size.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 512
	}
	return &BufferPool{
		defaultSize: size,
		maxRetain:   size * 16,
		pool: zeropool.New(func() []byte {
			return make([]byte, 0, size)
		}),
	}
}

// Get returns an empty buffer with at least the default capacity.
func (p *BufferPool) Get() []byte {
	p.outstanding.Add(1)
	return p.pool.Get()[:0]
}

// GetSize returns a buffer of length n.
func (p *BufferPool) GetSize(n int) []byte {
	p.outstanding.Add(1)
	buf := p.pool.Get()
	if cap(buf) < n {
		// Too small for this request; let it go back for smaller callers.
		p.pool.Put(buf[:0])
		return make([]byte, n)
	}
	return buf[:n]
}

// Put returns buf to the pool. The caller must not use buf afterwards.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.outstanding.Add(-1)
	if cap(buf) > p.maxRetain {
		return
	}
	p.pool.Put(buf[:0])
}

// DefaultSize is the capacity of freshly allocated buffers.
func (p *BufferPool) DefaultSize() int {
	return p.defaultSize
}

// Outstanding is the number of buffers handed out and not yet returned.
func (p *BufferPool) Outstanding() int64 {
	return p.outstanding.Load()
}
