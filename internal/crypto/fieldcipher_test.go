package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *FieldCipher {
	t.Helper()
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	fc, err := NewFieldCipher(key)
	require.NoError(t, err)
	return fc
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	fc := newTestCipher(t)

	for _, plaintext := range []string{
		"a@x.com",
		"+11234567890",
		"käytössä@example.fi",
		strings.Repeat("long-input-", 100),
	} {
		stored, err := fc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored, "v1:"))
		assert.NotContains(t, stored, plaintext)

		res := fc.Decrypt(stored)
		assert.Equal(t, DecryptOK, res.Status)
		assert.Equal(t, plaintext, res.Value)
	}
}

func TestEncryptEmptyIsEmpty(t *testing.T) {
	fc := newTestCipher(t)

	stored, err := fc.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", stored)

	res := fc.Decrypt("")
	assert.Equal(t, DecryptOK, res.Status)
	assert.Equal(t, "", res.Value)
}

func TestCiphertextIsNonceRandomized(t *testing.T) {
	fc := newTestCipher(t)

	first, err := fc.Encrypt("a@x.com")
	require.NoError(t, err)
	second, err := fc.Encrypt("a@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptLegacyPlaintextFallsBack(t *testing.T) {
	fc := newTestCipher(t)

	res := fc.Decrypt("pre-encryption@example.com")
	assert.Equal(t, DecryptLegacyPlaintext, res.Status)
	assert.Equal(t, "pre-encryption@example.com", res.Value)
}

func TestDecryptCorruptCiphertext(t *testing.T) {
	fc := newTestCipher(t)

	stored, err := fc.Encrypt("a@x.com")
	require.NoError(t, err)

	// Flip the tail of the base64 payload so GCM authentication fails.
	tampered := stored[:len(stored)-5] + "AAAAA"
	res := fc.Decrypt(tampered)
	assert.Equal(t, DecryptCorrupt, res.Status)
	assert.Equal(t, "", res.Value)

	res = fc.Decrypt("v1:!!not-base64!!")
	assert.Equal(t, DecryptCorrupt, res.Status)

	res = fc.Decrypt("v1:AAAA")
	assert.Equal(t, DecryptCorrupt, res.Status)
}

func TestDecryptWithWrongKey(t *testing.T) {
	fc := newTestCipher(t)
	other := newTestCipher(t)

	stored, err := fc.Encrypt("a@x.com")
	require.NoError(t, err)

	res := other.Decrypt(stored)
	assert.Equal(t, DecryptCorrupt, res.Status)
}

func TestLookupHashDeterministic(t *testing.T) {
	fc := newTestCipher(t)

	assert.Equal(t, fc.LookupHash("a@x.com"), fc.LookupHash("a@x.com"))
	assert.NotEqual(t, fc.LookupHash("a@x.com"), fc.LookupHash("b@x.com"))
	assert.Equal(t, "", fc.LookupHash(""))
}

func TestLookupHashDiffersAcrossKeys(t *testing.T) {
	fc := newTestCipher(t)
	other := newTestCipher(t)

	assert.NotEqual(t, fc.LookupHash("a@x.com"), other.LookupHash("a@x.com"))
}

func TestNewFieldCipherRejectsBadKey(t *testing.T) {
	_, err := NewFieldCipher("too-short")
	assert.Error(t, err)
}
