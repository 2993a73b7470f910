// Package secrets manages device API key material: generation, peppered
// hashing, and constant-time verification.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// DefaultKeyLength is the length of generated API keys when no explicit
// length is requested.
const DefaultKeyLength = 32

// keyAlphabet is the character set for generated keys. Alphanumeric only so
// keys survive copy-paste, query strings, and config files unescaped.
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrEmptyPepper is returned when the manager is constructed without a
// pepper. Callers should treat this as a fatal misconfiguration.
var ErrEmptyPepper = errors.New("device key pepper must not be empty")

// Manager generates and verifies device API keys. Digests are SHA-256 over
// the plaintext concatenated with a server-side pepper, so stored hashes are
// useless without the process configuration.
type Manager struct {
	pepper []byte
}

// NewManager creates a Manager with the given pepper. An empty pepper is a
// startup-time misconfiguration, not a runtime condition.
func NewManager(pepper string) (*Manager, error) {
	if pepper == "" {
		return nil, ErrEmptyPepper
	}
	return &Manager{pepper: []byte(pepper)}, nil
}

// GenerateKey returns a cryptographically random alphanumeric key. A length
// of zero or less falls back to DefaultKeyLength.
func (m *Manager) GenerateKey(length int) (string, error) {
	if length <= 0 {
		length = DefaultKeyLength
	}

	alphabetLen := big.NewInt(int64(len(keyAlphabet)))
	key := make([]byte, length)
	for i := range key {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		key[i] = keyAlphabet[n.Int64()]
	}

	return string(key), nil
}

// HashKey returns the hex-encoded SHA-256 digest of plaintext + pepper.
// The same plaintext always yields the same digest, which lets repositories
// look devices up by digest with an ordinary index.
func (m *Manager) HashKey(plaintext string) string {
	h := sha256.New()
	h.Write([]byte(plaintext))
	h.Write(m.pepper)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyKey reports whether plaintext hashes to digest. The comparison is
// constant-time to avoid a timing oracle on the digest value.
func (m *Manager) VerifyKey(plaintext, digest string) bool {
	computed := m.HashKey(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
