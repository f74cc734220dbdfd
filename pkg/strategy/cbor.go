package strategy

import (
	"context"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/fxamacker/cbor/v2"
)

// CBOR uses fxamacker/cbor. EncMode and DecMode are immutable once built
// and safe for concurrent use, so one pair serves the whole session.
type CBOR struct {
	base
}

func NewCBOR() *CBOR {
	return &CBOR{base{name: "cbor", family: bench.FamilyBinaryReflect}}
}

type cborSession struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func (c *CBOR) Setup(bench.SetupOptions) (bench.Session, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &cborSession{enc: enc, dec: dec}, nil
}

func (s *cborSession) Encode(u *fixture.User) ([]byte, error) {
	data, err := s.enc.Marshal(u)
	if err != nil {
		return nil, encodeErr("cbor", err)
	}
	return data, nil
}

func (s *cborSession) Decode(data []byte) (*fixture.User, error) {
	u := &fixture.User{}
	if err := s.dec.Unmarshal(data, u); err != nil {
		return nil, decodeErr("cbor", err)
	}
	return u, nil
}

func (s *cborSession) Close(context.Context) error {
	return nil
}
