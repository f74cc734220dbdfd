// Package fixture provides the single value every strategy encodes and
// decodes. The value never changes between runs, so timing differences come
// from the codec alone.
package fixture

// CanonicalID is the identifying field checked after every decode.
const CanonicalID = "zzs0"

// createdAtMillis is 2020-11-06T05:29:28Z.
const createdAtMillis int64 = 1604640568000

// Address is the nested record of User.
type Address struct {
	Province string `json:"province" cbor:"province" codec:"province"`
	City     string `json:"city" cbor:"city" codec:"city"`
	Street   string `json:"street" cbor:"street" codec:"street"`
	ZipCode  int32  `json:"zipCode" cbor:"zipCode" codec:"zipCode"`
}

// User is the benchmarked record.
type User struct {
	ID        string   `json:"id" cbor:"id" codec:"id"`
	Name      string   `json:"name" cbor:"name" codec:"name"`
	Age       int32    `json:"age" cbor:"age" codec:"age"`
	Gender    bool     `json:"gender" cbor:"gender" codec:"gender"`
	Email     string   `json:"email" cbor:"email" codec:"email"`
	Phone     string   `json:"phone" cbor:"phone" codec:"phone"`
	Score     float64  `json:"score" cbor:"score" codec:"score"`
	CreatedAt int64    `json:"createdAt" cbor:"createdAt" codec:"createdAt"`
	Tags      []string `json:"tags" cbor:"tags" codec:"tags"`
	Address   Address  `json:"address" cbor:"address" codec:"address"`
}

// Provider produces the canonical value. Each call must return a value no
// other caller holds.
type Provider func() *User

// New returns a fresh copy of the canonical User.
func New() *User {
	return &User{
		ID:        CanonicalID,
		Name:      "zzs",
		Age:       0,
		Gender:    true,
		Email:     "zzs@example.com",
		Phone:     "18800000000",
		Score:     98.5,
		CreatedAt: createdAtMillis,
		Tags:      []string{"serialize", "benchmark", "codec"},
		Address: Address{
			Province: "Guangdong",
			City:     "Guangzhou",
			Street:   "Tianhe Road 1",
			ZipCode:  510000,
		},
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Tags != nil {
		c.Tags = append([]string(nil), u.Tags...)
	}
	return &c
}
