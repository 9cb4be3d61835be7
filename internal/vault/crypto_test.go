package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := NewSealer(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	sealed, err := sealer.Seal("act.super-secret-token")
	require.NoError(t, err)
	require.NotContains(t, sealed, "super-secret")

	plaintext, err := sealer.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "act.super-secret-token", plaintext)
}

func TestSealer_UniqueNonces(t *testing.T) {
	sealer, err := NewSealer(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	first, err := sealer.Seal("token")
	require.NoError(t, err)
	second, err := sealer.Seal("token")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestSealer_WrongKey(t *testing.T) {
	sealer, err := NewSealer(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
	other, err := NewSealer(bytes.Repeat([]byte{0x02}, 32))
	require.NoError(t, err)

	sealed, err := sealer.Seal("token")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.Error(t, err)
}

func TestSealer_Truncated(t *testing.T) {
	sealer, err := NewSealer(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)

	_, err = sealer.Open("AAAA")
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestNewSealer_RejectsShortKey(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	require.ErrorIs(t, err, ErrInvalidKeySize)
}
