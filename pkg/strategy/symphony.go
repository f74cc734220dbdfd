package strategy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
)

// Symphony is the hand-written layout codec: a fixed-width section for
// scalars followed by an offset table into a variable section, the shape
// protoc-gen-symphony emits. Wire format, little endian:
//
//	[version:1][varCount:1]
//	[age:4][gender:1][score:8][createdAt:8][zipCode:4]
//	[end offset:2] x varCount
//	[id][name][email][phone][province][city][street][tags]
//
// Offsets are relative to the start of the variable section. Tags are
// [count:2] then [len:2][bytes] per tag.
type Symphony struct {
	base
}

func NewSymphony() *Symphony {
	return &Symphony{base{name: "symphony", family: bench.FamilyCompiled}}
}

const (
	symphonyVersion   = 0x00
	symphonyVarFields = 8
	symphonyFixedLen  = 4 + 1 + 8 + 8 + 4
	symphonyHeaderLen = 2 + symphonyFixedLen + 2*symphonyVarFields
)

var (
	errSymphonyTruncated = errors.New("truncated message")
	errSymphonyOffsets   = errors.New("offset table out of range")
)

type symphonySession struct{}

func (s *Symphony) Setup(bench.SetupOptions) (bench.Session, error) {
	return symphonySession{}, nil
}

func (symphonySession) Encode(u *fixture.User) ([]byte, error) {
	strs := [...]string{u.ID, u.Name, u.Email, u.Phone, u.Address.Province, u.Address.City, u.Address.Street}

	varLen := 2
	for _, tag := range u.Tags {
		if len(tag) > math.MaxUint16 {
			return nil, encodeErr("symphony", fmt.Errorf("tag of %d bytes does not fit a uint16 length", len(tag)))
		}
		varLen += 2 + len(tag)
	}
	if len(u.Tags) > math.MaxUint16 {
		return nil, encodeErr("symphony", fmt.Errorf("%d tags do not fit a uint16 count", len(u.Tags)))
	}
	for _, v := range strs {
		varLen += len(v)
	}
	if varLen > math.MaxUint16 {
		return nil, encodeErr("symphony", fmt.Errorf("variable section of %d bytes exceeds %d", varLen, math.MaxUint16))
	}

	buf := make([]byte, 0, symphonyHeaderLen+varLen)
	buf = append(buf, symphonyVersion, symphonyVarFields)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(u.Age))
	if u.Gender {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(u.Score))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(u.CreatedAt))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(u.Address.ZipCode))

	end := 0
	for _, v := range strs {
		end += len(v)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(end))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(varLen))

	for _, v := range strs {
		buf = append(buf, v...)
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(u.Tags)))
	for _, tag := range u.Tags {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(tag)))
		buf = append(buf, tag...)
	}
	return buf, nil
}

func (symphonySession) Decode(data []byte) (*fixture.User, error) {
	if len(data) < symphonyHeaderLen {
		return nil, decodeErr("symphony", fmt.Errorf("%w: %d bytes, header needs %d", errSymphonyTruncated, len(data), symphonyHeaderLen))
	}
	if data[0] != symphonyVersion {
		return nil, decodeErr("symphony", fmt.Errorf("unknown version %#x", data[0]))
	}
	if data[1] != symphonyVarFields {
		return nil, decodeErr("symphony", fmt.Errorf("expected %d variable fields, got %d", symphonyVarFields, data[1]))
	}

	fixed := data[2:]
	u := &fixture.User{
		Age:       int32(binary.LittleEndian.Uint32(fixed[0:])),
		Gender:    fixed[4] != 0,
		Score:     math.Float64frombits(binary.LittleEndian.Uint64(fixed[5:])),
		CreatedAt: int64(binary.LittleEndian.Uint64(fixed[13:])),
	}
	u.Address.ZipCode = int32(binary.LittleEndian.Uint32(fixed[21:]))

	table := data[2+symphonyFixedLen : symphonyHeaderLen]
	region := data[symphonyHeaderLen:]
	var fields [symphonyVarFields][]byte
	prev := 0
	for i := range fields {
		end := int(binary.LittleEndian.Uint16(table[2*i:]))
		if end < prev || end > len(region) {
			return nil, decodeErr("symphony", fmt.Errorf("%w: field %d ends at %d", errSymphonyOffsets, i, end))
		}
		fields[i] = region[prev:end]
		prev = end
	}
	if prev != len(region) {
		return nil, decodeErr("symphony", fmt.Errorf("%d trailing bytes", len(region)-prev))
	}

	u.ID = string(fields[0])
	u.Name = string(fields[1])
	u.Email = string(fields[2])
	u.Phone = string(fields[3])
	u.Address.Province = string(fields[4])
	u.Address.City = string(fields[5])
	u.Address.Street = string(fields[6])

	tags, err := symphonyTags(fields[7])
	if err != nil {
		return nil, decodeErr("symphony", err)
	}
	u.Tags = tags
	return u, nil
}

func (symphonySession) Close(context.Context) error {
	return nil
}

// symphonyTags parses the [count][len][bytes]... list.
func symphonyTags(b []byte) ([]string, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: tag count", errSymphonyTruncated)
	}
	count := int(binary.LittleEndian.Uint16(b))
	b = b[2:]
	if count == 0 {
		if len(b) != 0 {
			return nil, fmt.Errorf("%d bytes after empty tag list", len(b))
		}
		return nil, nil
	}

	tags := make([]string, count)
	for i := range tags {
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: tag %d length", errSymphonyTruncated, i)
		}
		n := int(binary.LittleEndian.Uint16(b))
		b = b[2:]
		if len(b) < n {
			return nil, fmt.Errorf("%w: tag %d needs %d bytes, %d left", errSymphonyTruncated, i, n, len(b))
		}
		tags[i] = string(b[:n])
		b = b[n:]
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%d bytes after tag list", len(b))
	}
	return tags, nil
}
