package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	enc, err := EncryptString(key, "super-secret-client-key")
	require.NoError(t, err)
	require.NotEqual(t, "super-secret-client-key", enc)

	dec, err := DecryptString(key, enc)
	require.NoError(t, err)
	require.Equal(t, "super-secret-client-key", dec)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	key := testKey(t)

	a, err := EncryptString(key, "same plaintext")
	require.NoError(t, err)
	b, err := EncryptString(key, "same plaintext")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "a fresh nonce must make each ciphertext unique")
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc, err := EncryptString(testKey(t), "secret")
	require.NoError(t, err)

	_, err = DecryptString(testKey(t), enc)
	require.Error(t, err)
}

func TestDecryptGarbageFails(t *testing.T) {
	_, err := DecryptString(testKey(t), "not base64 at all!!!")
	require.Error(t, err)
}
