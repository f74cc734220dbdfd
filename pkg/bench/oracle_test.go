package bench

import (
	"testing"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/stretchr/testify/require"
)

func TestOracle(t *testing.T) {
	testCases := []struct {
		name     string
		mode     OracleMode
		mutate   func(u *fixture.User)
		nilValue bool
		field    string
	}{
		{name: "IdentityMatch", mode: OracleIdentity},
		{name: "DeepMatch", mode: OracleDeep},
		{name: "IdentityWrongID", mode: OracleIdentity, mutate: func(u *fixture.User) { u.ID = "zzs1" }, field: "ID"},
		{name: "DeepWrongID", mode: OracleDeep, mutate: func(u *fixture.User) { u.ID = "" }, field: "ID"},
		{name: "IdentityIgnoresAge", mode: OracleIdentity, mutate: func(u *fixture.User) { u.Age = 30 }},
		{name: "DeepCatchesAge", mode: OracleDeep, mutate: func(u *fixture.User) { u.Age = 30 }, field: "User"},
		{name: "DeepCatchesNested", mode: OracleDeep, mutate: func(u *fixture.User) { u.Address.ZipCode = 1 }, field: "User"},
		{name: "DeepCatchesTags", mode: OracleDeep, mutate: func(u *fixture.User) { u.Tags = u.Tags[:1] }, field: "User"},
		{name: "NilValue", mode: OracleIdentity, nilValue: true, field: "value"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOracle(tc.mode, fixture.New())
			got := fixture.New()
			if tc.mutate != nil {
				tc.mutate(got)
			}
			if tc.nilValue {
				got = nil
			}

			err := o.Check(got)
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrCorrectness)
			var ce *CorrectnessError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestOracleEmptyTagsEquateNil(t *testing.T) {
	want := fixture.New()
	want.Tags = []string{}
	got := fixture.New()
	got.Tags = nil

	require.NoError(t, NewOracle(OracleDeep, want).Check(got))
}

func TestOracleKeepsOwnCopy(t *testing.T) {
	want := fixture.New()
	o := NewOracle(OracleDeep, want)
	want.Name = "someone else"

	require.NoError(t, o.Check(fixture.New()))
}

func TestCheckSize(t *testing.T) {
	require.NoError(t, CheckSize(10, 10))
	err := CheckSize(10, 11)
	require.ErrorIs(t, err, ErrCorrectness)
	require.Contains(t, err.Error(), "encoded size")
}

func TestParseOracleMode(t *testing.T) {
	for in, want := range map[string]OracleMode{"id": OracleIdentity, "Identity": OracleIdentity, "deep": OracleDeep, "": OracleDeep} {
		got, err := ParseOracleMode(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseOracleMode("fuzzy")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
