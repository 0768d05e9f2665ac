// internal/crypto/fieldcipher.go
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// ciphertextPrefix marks values this package produced. Stored values
// without it are treated as legacy plaintext rows from before encryption
// was introduced.
const ciphertextPrefix = "v1:"

// DecryptStatus classifies the outcome of a Decrypt call.
type DecryptStatus int

const (
	// DecryptOK: the value decrypted and authenticated.
	DecryptOK DecryptStatus = iota
	// DecryptLegacyPlaintext: the stored value predates encryption and is
	// returned as-is. This is a compatibility shim for historical rows,
	// not a security property.
	DecryptLegacyPlaintext
	// DecryptCorrupt: the value carries the ciphertext prefix but failed
	// authentication or decoding.
	DecryptCorrupt
)

// DecryptResult makes the fallback path explicit: callers choose how to
// handle each outcome instead of catching a decryption failure.
type DecryptResult struct {
	Status DecryptStatus
	// Value holds the plaintext for DecryptOK, the raw stored value for
	// DecryptLegacyPlaintext, and "" for DecryptCorrupt.
	Value string
}

// FieldCipher encrypts individual PII fields with AES-256-GCM. Ciphertext
// is nonce-randomized, so two encryptions of the same plaintext differ;
// exact-match lookup goes through LookupHash, a deterministic keyed digest
// stored in a companion column.
type FieldCipher struct {
	aead      cipher.AEAD
	lookupKey []byte
}

// NewFieldCipher builds a cipher from a base64-encoded 32-byte master key.
func NewFieldCipher(masterKey string) (*FieldCipher, error) {
	keyBytes, err := decodeMasterKey(masterKey)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &FieldCipher{
		aead:      aead,
		lookupKey: deriveKey(keyBytes, "field-lookup"),
	}, nil
}

// Encrypt returns "v1:" + base64(nonce || ciphertext). Empty input yields
// empty output so nullable columns stay null.
func (fc *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, fc.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := fc.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return ciphertextPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt never returns an error. A value without the ciphertext prefix is
// reported as legacy plaintext; a prefixed value that fails decoding or
// authentication is reported as corrupt.
func (fc *FieldCipher) Decrypt(stored string) DecryptResult {
	if stored == "" {
		return DecryptResult{Status: DecryptOK, Value: ""}
	}
	if !strings.HasPrefix(stored, ciphertextPrefix) {
		return DecryptResult{Status: DecryptLegacyPlaintext, Value: stored}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, ciphertextPrefix))
	if err != nil {
		return DecryptResult{Status: DecryptCorrupt}
	}
	nonceSize := fc.aead.NonceSize()
	if len(decoded) < nonceSize {
		return DecryptResult{Status: DecryptCorrupt}
	}

	plaintext, err := fc.aead.Open(nil, decoded[:nonceSize], decoded[nonceSize:], nil)
	if err != nil {
		return DecryptResult{Status: DecryptCorrupt}
	}
	return DecryptResult{Status: DecryptOK, Value: string(plaintext)}
}

// LookupHash returns the deterministic blind-index digest of a plaintext
// identifier. The uniqueness constraint on stored identifiers lives on this
// value, not on the randomized ciphertext.
func (fc *FieldCipher) LookupHash(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	mac := hmac.New(sha256.New, fc.lookupKey)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateMasterKey generates a random 32-byte key for AES-256, base64
// encoded for storage in config/env.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeMasterKey(masterKey string) ([]byte, error) {
	keyBytes := []byte(masterKey)
	if decoded, err := base64.StdEncoding.DecodeString(masterKey); err == nil {
		keyBytes = decoded
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("invalid master key length: must be 32 bytes for AES-256, got %d", len(keyBytes))
	}
	return keyBytes, nil
}

// deriveKey namespaces subkeys off the master key so the lookup index and
// consent tokens never share key material with the cipher itself.
func deriveKey(masterKey []byte, label string) []byte {
	mac := hmac.New(sha256.New, masterKey)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}
