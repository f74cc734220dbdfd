package strategy

import (
	"context"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/francoispqt/gojay"
)

// Gojay writes and reads JSON through hand-written marshalers; there is no
// reflection or binding metadata involved.
type Gojay struct {
	base
}

func NewGojay() *Gojay {
	return &Gojay{base{name: "gojay", family: bench.FamilyJSONManual}}
}

type gojaySession struct{}

func (g *Gojay) Setup(bench.SetupOptions) (bench.Session, error) {
	return gojaySession{}, nil
}

func (gojaySession) Encode(u *fixture.User) ([]byte, error) {
	data, err := gojay.MarshalJSONObject((*gojayUser)(u))
	if err != nil {
		return nil, encodeErr("gojay", err)
	}
	return data, nil
}

func (gojaySession) Decode(data []byte) (*fixture.User, error) {
	u := &gojayUser{}
	if err := gojay.UnmarshalJSONObject(data, u); err != nil {
		return nil, decodeErr("gojay", err)
	}
	return (*fixture.User)(u), nil
}

func (gojaySession) Close(context.Context) error {
	return nil
}

type gojayUser fixture.User

// MarshalJSONObject implements MarshalerJSONObject
func (u *gojayUser) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("id", u.ID)
	enc.StringKey("name", u.Name)
	enc.Int32Key("age", u.Age)
	enc.BoolKey("gender", u.Gender)
	enc.StringKey("email", u.Email)
	enc.StringKey("phone", u.Phone)
	enc.Float64Key("score", u.Score)
	enc.Int64Key("createdAt", u.CreatedAt)
	enc.ArrayKey("tags", gojayTags(u.Tags))
	enc.ObjectKey("address", (*gojayAddress)(&u.Address))
}

// IsNil checks if instance is nil
func (u *gojayUser) IsNil() bool {
	return u == nil
}

// UnmarshalJSONObject implements gojay's UnmarshalerJSONObject
func (u *gojayUser) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "id":
		return dec.String(&u.ID)
	case "name":
		return dec.String(&u.Name)
	case "age":
		return dec.Int32(&u.Age)
	case "gender":
		return dec.Bool(&u.Gender)
	case "email":
		return dec.String(&u.Email)
	case "phone":
		return dec.String(&u.Phone)
	case "score":
		return dec.Float64(&u.Score)
	case "createdAt":
		return dec.Int64(&u.CreatedAt)
	case "tags":
		var tags gojayTags
		err := dec.Array(&tags)
		if err == nil && len(tags) > 0 {
			u.Tags = []string(tags)
		}
		return err
	case "address":
		return dec.Object((*gojayAddress)(&u.Address))
	}
	return nil
}

// NKeys returns the number of keys to unmarshal
func (u *gojayUser) NKeys() int { return 10 }

type gojayAddress fixture.Address

// MarshalJSONObject implements MarshalerJSONObject
func (a *gojayAddress) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("province", a.Province)
	enc.StringKey("city", a.City)
	enc.StringKey("street", a.Street)
	enc.Int32Key("zipCode", a.ZipCode)
}

// IsNil checks if instance is nil
func (a *gojayAddress) IsNil() bool {
	return a == nil
}

// UnmarshalJSONObject implements gojay's UnmarshalerJSONObject
func (a *gojayAddress) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "province":
		return dec.String(&a.Province)
	case "city":
		return dec.String(&a.City)
	case "street":
		return dec.String(&a.Street)
	case "zipCode":
		return dec.Int32(&a.ZipCode)
	}
	return nil
}

// NKeys returns the number of keys to unmarshal
func (a *gojayAddress) NKeys() int { return 4 }

type gojayTags []string

func (t *gojayTags) UnmarshalJSONArray(dec *gojay.Decoder) error {
	var s string
	if err := dec.String(&s); err != nil {
		return err
	}
	*t = append(*t, s)
	return nil
}

func (t gojayTags) MarshalJSONArray(enc *gojay.Encoder) {
	for _, s := range t {
		enc.String(s)
	}
}

func (t gojayTags) IsNil() bool {
	return len(t) == 0
}
