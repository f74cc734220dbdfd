package fixture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsDeterministic(t *testing.T) {
	a, b := New(), New()
	require.Equal(t, a, b)
	require.Equal(t, CanonicalID, a.ID)
	require.Zero(t, a.Age)
}

func TestNewReturnsFreshCopies(t *testing.T) {
	a, b := New(), New()
	a.Tags[0] = "mutated"
	a.Address.City = "elsewhere"

	require.Equal(t, "serialize", b.Tags[0])
	require.Equal(t, "Guangzhou", b.Address.City)
}

func TestClone(t *testing.T) {
	u := New()
	c := u.Clone()
	require.Equal(t, u, c)

	c.Tags[1] = "changed"
	require.NotEqual(t, u.Tags[1], c.Tags[1])

	var nilUser *User
	require.Nil(t, nilUser.Clone())
}
