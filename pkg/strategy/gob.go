package strategy

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/common"
)

// Gob is Go's own object-graph serialization. A gob stream carries its type
// descriptors, so every call uses a fresh Encoder or Decoder to keep each
// payload self-contained. Only the scratch buffers are reused.
type Gob struct {
	base
}

func NewGob() *Gob {
	return &Gob{base{name: "gob", family: bench.FamilyNative}}
}

type gobSession struct {
	bufs *common.BufferPool
}

func (g *Gob) Setup(bench.SetupOptions) (bench.Session, error) {
	return &gobSession{bufs: common.NewBufferPool(512)}, nil
}

func (s *gobSession) Encode(u *fixture.User) ([]byte, error) {
	buf := bytes.NewBuffer(s.bufs.Get())
	defer func() { s.bufs.Put(buf.Bytes()) }()
	if err := gob.NewEncoder(buf).Encode(u); err != nil {
		return nil, encodeErr("gob", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (s *gobSession) Decode(data []byte) (*fixture.User, error) {
	u := &fixture.User{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(u); err != nil {
		return nil, decodeErr("gob", err)
	}
	return u, nil
}

func (s *gobSession) Close(context.Context) error {
	return nil
}
