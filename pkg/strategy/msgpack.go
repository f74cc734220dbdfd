package strategy

import (
	"context"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/pool"
	"github.com/ugorji/go/codec"
)

// Msgpack encodes with ugorji's MessagePack handle. Encoder and Decoder
// values keep per-call state, so every session keeps a pool of them and
// shares only the read-only handle.
type Msgpack struct {
	base
}

func NewMsgpack() *Msgpack {
	return &Msgpack{base{name: "msgpack", family: bench.FamilyBinaryGraph, pooled: true}}
}

type msgpackCodec struct {
	buf []byte
	enc *codec.Encoder
	dec *codec.Decoder
}

type msgpackSession struct {
	pool *pool.Pool[*msgpackCodec]
}

func (m *Msgpack) Setup(opts bench.SetupOptions) (bench.Session, error) {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.Canonical = true

	p, err := newPool(m.name, opts, func() (*msgpackCodec, error) {
		c := &msgpackCodec{buf: make([]byte, 0, 256)}
		c.enc = codec.NewEncoderBytes(&c.buf, h)
		c.dec = codec.NewDecoderBytes(nil, h)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return &msgpackSession{pool: p}, nil
}

func (s *msgpackSession) Encode(u *fixture.User) ([]byte, error) {
	var out []byte
	err := s.pool.Do(context.Background(), func(c *msgpackCodec) error {
		c.buf = c.buf[:0]
		c.enc.ResetBytes(&c.buf)
		if err := c.enc.Encode(u); err != nil {
			return encodeErr("msgpack", err)
		}
		out = make([]byte, len(c.buf))
		copy(out, c.buf)
		return nil
	})
	return out, err
}

func (s *msgpackSession) Decode(data []byte) (*fixture.User, error) {
	u := &fixture.User{}
	err := s.pool.Do(context.Background(), func(c *msgpackCodec) error {
		c.dec.ResetBytes(data)
		if err := c.dec.Decode(u); err != nil {
			return decodeErr("msgpack", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *msgpackSession) Close(ctx context.Context) error {
	return s.pool.Close(ctx)
}
