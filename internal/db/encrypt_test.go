package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitEncryptionRejectsBadKeyLength(t *testing.T) {
	require.Error(t, InitEncryption([]byte("too short")))
	require.Error(t, InitEncryption(make([]byte, 64)))
	require.NoError(t, InitEncryption(make([]byte, 32)))
}

func TestEncryptedStringRoundTrip(t *testing.T) {
	require.NoError(t, InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	original := EncryptedString("hunter2-webhook-signing-secret")

	stored, err := original.Value()
	require.NoError(t, err)

	// The stored form must not contain the plaintext.
	storedStr, ok := stored.(string)
	require.True(t, ok)
	assert.NotContains(t, storedStr, string(original))

	var decrypted EncryptedString
	require.NoError(t, decrypted.Scan(storedStr))
	assert.Equal(t, original, decrypted)
}

func TestEncryptedStringEmptyPassthrough(t *testing.T) {
	require.NoError(t, InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	stored, err := EncryptedString("").Value()
	require.NoError(t, err)
	assert.Equal(t, "", stored)

	var decrypted EncryptedString
	require.NoError(t, decrypted.Scan(""))
	assert.Equal(t, EncryptedString(""), decrypted)
}

func TestEncryptedStringNonceVariesPerWrite(t *testing.T) {
	require.NoError(t, InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	first, err := EncryptedString("same plaintext").Value()
	require.NoError(t, err)
	second, err := EncryptedString("same plaintext").Value()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptedStringScanRejectsTamperedCiphertext(t *testing.T) {
	require.NoError(t, InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	stored, err := EncryptedString("secret").Value()
	require.NoError(t, err)
	storedStr := stored.(string)

	// Flip a base64 character. GCM authentication must reject the result.
	tampered := []byte(storedStr)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}

	var decrypted EncryptedString
	assert.Error(t, decrypted.Scan(string(tampered)))
}
