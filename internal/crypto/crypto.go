package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// ErrDecrypt is returned when Decrypt fails to authenticate a ciphertext —
// wrong key, corrupted data, or a nonce that doesn't match the ciphertext
// it was sealed with.
var ErrDecrypt = errors.New("crypto: failed to decrypt or authenticate ciphertext")

// Sealer wraps a 256-bit AES-GCM key. Unlike the package-level
// encryptionKey this generalizes from, the key is process configuration
// (internal/config), never a literal, and every call is safe for
// concurrent use — cipher.AEAD values returned by cipher.NewGCM carry no
// mutable state.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a 32-byte (256-bit) key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, errors.New("crypto: key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Encrypt seals plaintext with a freshly random nonce and returns the
// ciphertext (with the GCM authentication tag appended) and the nonce used.
func (s *Sealer) Encrypt(plaintext string) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt authenticates and opens a ciphertext produced by Encrypt. It
// returns ErrDecrypt rather than the underlying cipher error so callers
// never see internals that might aid an attacker.
func (s *Sealer) Decrypt(ciphertext, nonce []byte) (string, error) {
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// NonceSize reports the nonce length this Sealer expects (12 bytes for the
// standard AES-GCM construction used here).
func (s *Sealer) NonceSize() int {
	return s.aead.NonceSize()
}
