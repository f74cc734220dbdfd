package strategy

import (
	"context"
	"fmt"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/appnet-org/codecbench/pkg/pool"
	flatbuffers "github.com/google/flatbuffers/go"
)

// FlatBuffers writes the fixture as two tables, User and Address, using
// the slot numbers flatc would assign to:
//
//	table Address { province:string; city:string; street:string; zip_code:int; }
//	table User {
//	  id:string; name:string; age:int; gender:bool; email:string; phone:string;
//	  score:double; created_at:long; tags:[string]; address:Address;
//	}
//
// A Builder is not safe for concurrent use and is expensive to grow, so
// sessions pool them and Reset one per encode.
type FlatBuffers struct {
	base
}

func NewFlatBuffers() *FlatBuffers {
	return &FlatBuffers{base{name: "flatbuffers", family: bench.FamilyCompiled, pooled: true}}
}

// User slots
const (
	fbUserID = iota
	fbUserName
	fbUserAge
	fbUserGender
	fbUserEmail
	fbUserPhone
	fbUserScore
	fbUserCreatedAt
	fbUserTags
	fbUserAddress
	fbUserFields
)

// Address slots
const (
	fbAddressProvince = iota
	fbAddressCity
	fbAddressStreet
	fbAddressZipCode
	fbAddressFields
)

type flatbuffersSession struct {
	pool *pool.Pool[*flatbuffers.Builder]
}

func (f *FlatBuffers) Setup(opts bench.SetupOptions) (bench.Session, error) {
	p, err := newPool(f.name, opts, func() (*flatbuffers.Builder, error) {
		return flatbuffers.NewBuilder(256), nil
	})
	if err != nil {
		return nil, err
	}
	return &flatbuffersSession{pool: p}, nil
}

func (s *flatbuffersSession) Encode(u *fixture.User) ([]byte, error) {
	var out []byte
	err := s.pool.Do(context.Background(), func(b *flatbuffers.Builder) error {
		b.Reset()

		province := b.CreateString(u.Address.Province)
		city := b.CreateString(u.Address.City)
		street := b.CreateString(u.Address.Street)
		b.StartObject(fbAddressFields)
		b.PrependUOffsetTSlot(fbAddressProvince, province, 0)
		b.PrependUOffsetTSlot(fbAddressCity, city, 0)
		b.PrependUOffsetTSlot(fbAddressStreet, street, 0)
		b.PrependInt32Slot(fbAddressZipCode, u.Address.ZipCode, 0)
		addr := b.EndObject()

		tagOffsets := make([]flatbuffers.UOffsetT, len(u.Tags))
		for i, tag := range u.Tags {
			tagOffsets[i] = b.CreateString(tag)
		}
		b.StartVector(flatbuffers.SizeUOffsetT, len(tagOffsets), flatbuffers.SizeUOffsetT)
		for i := len(tagOffsets) - 1; i >= 0; i-- {
			b.PrependUOffsetT(tagOffsets[i])
		}
		tags := b.EndVector(len(tagOffsets))

		id := b.CreateString(u.ID)
		name := b.CreateString(u.Name)
		email := b.CreateString(u.Email)
		phone := b.CreateString(u.Phone)

		b.StartObject(fbUserFields)
		b.PrependUOffsetTSlot(fbUserID, id, 0)
		b.PrependUOffsetTSlot(fbUserName, name, 0)
		b.PrependInt32Slot(fbUserAge, u.Age, 0)
		b.PrependBoolSlot(fbUserGender, u.Gender, false)
		b.PrependUOffsetTSlot(fbUserEmail, email, 0)
		b.PrependUOffsetTSlot(fbUserPhone, phone, 0)
		b.PrependFloat64Slot(fbUserScore, u.Score, 0)
		b.PrependInt64Slot(fbUserCreatedAt, u.CreatedAt, 0)
		b.PrependUOffsetTSlot(fbUserTags, tags, 0)
		b.PrependUOffsetTSlot(fbUserAddress, addr, 0)
		b.Finish(b.EndObject())

		finished := b.FinishedBytes()
		out = make([]byte, len(finished))
		copy(out, finished)
		return nil
	})
	return out, err
}

// Decode reads the tables in place. The accessors index the buffer
// directly, so a malformed payload panics; that is turned into ErrDecode.
func (s *flatbuffersSession) Decode(data []byte) (u *fixture.User, err error) {
	if len(data) < 2*flatbuffers.SizeUOffsetT {
		return nil, decodeErr("flatbuffers", fmt.Errorf("payload of %d bytes is too short", len(data)))
	}
	defer func() {
		if r := recover(); r != nil {
			u, err = nil, decodeErr("flatbuffers", fmt.Errorf("%v", r))
		}
	}()

	root := fbTable{flatbuffers.Table{Bytes: data, Pos: flatbuffers.GetUOffsetT(data)}}
	u = &fixture.User{
		ID:        root.stringAt(fbUserID),
		Name:      root.stringAt(fbUserName),
		Age:       root.int32At(fbUserAge),
		Gender:    root.boolAt(fbUserGender),
		Email:     root.stringAt(fbUserEmail),
		Phone:     root.stringAt(fbUserPhone),
		Score:     root.float64At(fbUserScore),
		CreatedAt: root.int64At(fbUserCreatedAt),
		Tags:      root.stringsAt(fbUserTags),
	}
	if addr, ok := root.tableAt(fbUserAddress); ok {
		u.Address = fixture.Address{
			Province: addr.stringAt(fbAddressProvince),
			City:     addr.stringAt(fbAddressCity),
			Street:   addr.stringAt(fbAddressStreet),
			ZipCode:  addr.int32At(fbAddressZipCode),
		}
	}
	return u, nil
}

func (s *flatbuffersSession) Close(ctx context.Context) error {
	return s.pool.Close(ctx)
}

// fbTable is the accessor set flatc generates per field, written once for
// slot numbers.
type fbTable struct {
	flatbuffers.Table
}

func (t *fbTable) offset(slot int) flatbuffers.UOffsetT {
	return flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
}

func (t *fbTable) stringAt(slot int) string {
	if o := t.offset(slot); o != 0 {
		return string(t.ByteVector(o + t.Pos))
	}
	return ""
}

func (t *fbTable) int32At(slot int) int32 {
	if o := t.offset(slot); o != 0 {
		return t.GetInt32(o + t.Pos)
	}
	return 0
}

func (t *fbTable) int64At(slot int) int64 {
	if o := t.offset(slot); o != 0 {
		return t.GetInt64(o + t.Pos)
	}
	return 0
}

func (t *fbTable) float64At(slot int) float64 {
	if o := t.offset(slot); o != 0 {
		return t.GetFloat64(o + t.Pos)
	}
	return 0
}

func (t *fbTable) boolAt(slot int) bool {
	if o := t.offset(slot); o != 0 {
		return t.GetBool(o + t.Pos)
	}
	return false
}

func (t *fbTable) stringsAt(slot int) []string {
	o := t.offset(slot)
	if o == 0 {
		return nil
	}
	n := t.VectorLen(o)
	if n == 0 {
		return nil
	}
	start := t.Vector(o)
	out := make([]string, n)
	for i := range out {
		out[i] = string(t.ByteVector(start + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)))
	}
	return out
}

func (t *fbTable) tableAt(slot int) (fbTable, bool) {
	o := t.offset(slot)
	if o == 0 {
		return fbTable{}, false
	}
	return fbTable{flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(o + t.Pos)}}, true
}
