package strategy

import (
	"context"
	"errors"
	"math"

	"capnproto.org/go/capnp/v3"
	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
)

// Capnp lays the fixture out as Cap'n Proto structs. The layout below is
// what the capnp compiler would assign to:
//
//	struct Address { province @0 :Text; city @1 :Text; street @2 :Text; zipCode @3 :Int32; }
//	struct User {
//	  id @0 :Text; name @1 :Text; age @2 :Int32; gender @3 :Bool;
//	  email @4 :Text; phone @5 :Text; score @6 :Float64; createdAt @7 :Int64;
//	  tags @8 :List(Text); address @9 :Address;
//	}
//
// Every encode builds a new single-segment message; decoding reads fields
// in place from the received bytes.
type Capnp struct {
	base
}

func NewCapnp() *Capnp {
	return &Capnp{base{name: "capnp", family: bench.FamilyCompiled}}
}

var (
	capnpUserSize    = capnp.ObjectSize{DataSize: 24, PointerCount: 6}
	capnpAddressSize = capnp.ObjectSize{DataSize: 8, PointerCount: 3}
)

// User data section
const (
	capnpAgeOffset       capnp.DataOffset = 0
	capnpGenderBit       capnp.BitOffset  = 32
	capnpScoreOffset     capnp.DataOffset = 8
	capnpCreatedAtOffset capnp.DataOffset = 16
)

// User pointer section
const (
	capnpIDPtr uint16 = iota
	capnpNamePtr
	capnpEmailPtr
	capnpPhonePtr
	capnpTagsPtr
	capnpAddressPtr
)

// Address layout
const (
	capnpZipCodeOffset capnp.DataOffset = 0
	capnpProvincePtr   uint16           = 0
	capnpCityPtr       uint16           = 1
	capnpStreetPtr     uint16           = 2
)

type capnpSession struct{}

func (c *Capnp) Setup(bench.SetupOptions) (bench.Session, error) {
	return capnpSession{}, nil
}

func (capnpSession) Encode(u *fixture.User) ([]byte, error) {
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		return nil, encodeErr("capnp", err)
	}

	root, err := capnp.NewRootStruct(seg, capnpUserSize)
	if err != nil {
		return nil, encodeErr("capnp", err)
	}
	root.SetUint32(capnpAgeOffset, uint32(u.Age))
	root.SetBit(capnpGenderBit, u.Gender)
	root.SetUint64(capnpScoreOffset, math.Float64bits(u.Score))
	root.SetUint64(capnpCreatedAtOffset, uint64(u.CreatedAt))

	texts := []struct {
		ptr uint16
		v   string
	}{
		{capnpIDPtr, u.ID},
		{capnpNamePtr, u.Name},
		{capnpEmailPtr, u.Email},
		{capnpPhonePtr, u.Phone},
	}
	for _, t := range texts {
		if err := root.SetText(t.ptr, t.v); err != nil {
			return nil, encodeErr("capnp", err)
		}
	}

	tags, err := capnp.NewTextList(seg, int32(len(u.Tags)))
	if err != nil {
		return nil, encodeErr("capnp", err)
	}
	for i, tag := range u.Tags {
		if err := tags.Set(i, tag); err != nil {
			return nil, encodeErr("capnp", err)
		}
	}
	if err := root.SetPtr(capnpTagsPtr, tags.ToPtr()); err != nil {
		return nil, encodeErr("capnp", err)
	}

	addr, err := capnp.NewStruct(seg, capnpAddressSize)
	if err != nil {
		return nil, encodeErr("capnp", err)
	}
	addr.SetUint32(capnpZipCodeOffset, uint32(u.Address.ZipCode))
	for _, t := range []struct {
		ptr uint16
		v   string
	}{
		{capnpProvincePtr, u.Address.Province},
		{capnpCityPtr, u.Address.City},
		{capnpStreetPtr, u.Address.Street},
	} {
		if err := addr.SetText(t.ptr, t.v); err != nil {
			return nil, encodeErr("capnp", err)
		}
	}
	if err := root.SetPtr(capnpAddressPtr, addr.ToPtr()); err != nil {
		return nil, encodeErr("capnp", err)
	}

	data, err := msg.Marshal()
	if err != nil {
		return nil, encodeErr("capnp", err)
	}
	return data, nil
}

func (capnpSession) Decode(data []byte) (*fixture.User, error) {
	msg, err := capnp.Unmarshal(data)
	if err != nil {
		return nil, decodeErr("capnp", err)
	}
	p, err := msg.Root()
	if err != nil {
		return nil, decodeErr("capnp", err)
	}
	root := p.Struct()
	if !root.IsValid() {
		return nil, decodeErr("capnp", errors.New("root is not a struct"))
	}

	u := &fixture.User{
		Age:       int32(root.Uint32(capnpAgeOffset)),
		Gender:    root.Bit(capnpGenderBit),
		Score:     math.Float64frombits(root.Uint64(capnpScoreOffset)),
		CreatedAt: int64(root.Uint64(capnpCreatedAtOffset)),
	}

	for _, t := range []struct {
		ptr uint16
		dst *string
	}{
		{capnpIDPtr, &u.ID},
		{capnpNamePtr, &u.Name},
		{capnpEmailPtr, &u.Email},
		{capnpPhonePtr, &u.Phone},
	} {
		if *t.dst, err = capnpText(root, t.ptr); err != nil {
			return nil, decodeErr("capnp", err)
		}
	}

	tp, err := root.Ptr(capnpTagsPtr)
	if err != nil {
		return nil, decodeErr("capnp", err)
	}
	if tags := capnp.TextList(tp.List()); tags.Len() > 0 {
		u.Tags = make([]string, tags.Len())
		for i := range u.Tags {
			if u.Tags[i], err = tags.At(i); err != nil {
				return nil, decodeErr("capnp", err)
			}
		}
	}

	ap, err := root.Ptr(capnpAddressPtr)
	if err != nil {
		return nil, decodeErr("capnp", err)
	}
	addr := ap.Struct()
	u.Address.ZipCode = int32(addr.Uint32(capnpZipCodeOffset))
	for _, t := range []struct {
		ptr uint16
		dst *string
	}{
		{capnpProvincePtr, &u.Address.Province},
		{capnpCityPtr, &u.Address.City},
		{capnpStreetPtr, &u.Address.Street},
	} {
		if *t.dst, err = capnpText(addr, t.ptr); err != nil {
			return nil, decodeErr("capnp", err)
		}
	}
	return u, nil
}

func (capnpSession) Close(context.Context) error {
	return nil
}

func capnpText(s capnp.Struct, i uint16) (string, error) {
	p, err := s.Ptr(i)
	if err != nil {
		return "", err
	}
	return p.Text(), nil
}
