package strategy

import (
	"testing"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"github.com/stretchr/testify/require"
)

func TestGobReturnsScratchBuffers(t *testing.T) {
	session := setupSession(t, NewGob(), bench.SetupOptions{})
	bufs := session.(*gobSession).bufs

	t.Run("Success", func(t *testing.T) {
		_, err := session.Encode(fixture.New())
		require.NoError(t, err)
		require.Zero(t, bufs.Outstanding())
	})

	t.Run("EncodeError", func(t *testing.T) {
		// gob refuses nil pointers
		_, err := session.Encode(nil)
		require.ErrorIs(t, err, bench.ErrEncode)
		require.Zero(t, bufs.Outstanding())
	})
}
