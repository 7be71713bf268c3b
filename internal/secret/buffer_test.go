package secret

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewFromBytes_ZeroesSource ensures the caller's copy is wiped.
func TestNewFromBytes_ZeroesSource(t *testing.T) {
	t.Parallel()

	source := []byte("hunter2")

	buffer, err := NewFromBytes(source)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, buffer.Close())
	}()

	require.Equal(t, make([]byte, 7), source)
	require.Equal(t, 7, buffer.Len())

	err = buffer.Use(func(secret []byte) error {
		require.Equal(t, "hunter2", string(secret))

		return nil
	})
	require.NoError(t, err)
}

// TestNewFromBytes_Empty rejects empty secrets.
func TestNewFromBytes_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewFromBytes(nil)
	require.ErrorIs(t, err, errEmptySecret)
}

// TestBuffer_Close verifies Close is idempotent and blocks further reads.
func TestBuffer_Close(t *testing.T) {
	t.Parallel()

	buffer, err := NewFromString("s3cret")
	require.NoError(t, err)

	require.NoError(t, buffer.Close())
	require.NoError(t, buffer.Close())
	require.Zero(t, buffer.Len())

	err = buffer.Use(func([]byte) error { return nil })
	require.ErrorIs(t, err, errClosed)

	var nilBuffer *Buffer
	require.NoError(t, nilBuffer.Close())
}

// TestBuffer_String never prints the secret.
func TestBuffer_String(t *testing.T) {
	t.Parallel()

	buffer, err := NewFromString("s3cret")
	require.NoError(t, err)

	defer func() {
		_ = buffer.Close()
	}()

	require.NotContains(t, fmt.Sprint(buffer), "s3cret")
	require.NotContains(t, fmt.Sprintf("%v %s", buffer, buffer), "s3cret")
}
