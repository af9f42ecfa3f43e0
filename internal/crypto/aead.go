package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"parrhesia/internal/domain"
)

// AES-256-GCM parameters. The IV is prepended to the sealed output.
const (
	AEADKeySize = 32
	IVSize      = 12
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AEADKeySize {
		return nil, domain.ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under a fresh random 96-bit IV
// and returns iv ∥ ciphertext ∥ tag.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	return aead.Seal(iv, iv, plaintext, nil), nil
}

// Open decrypts iv ∥ ciphertext ∥ tag produced by Seal.
func Open(key, blob []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < IVSize+aead.Overhead() {
		return nil, domain.ErrAeadAuthFailure
	}
	pt, err := aead.Open(nil, blob[:IVSize], blob[IVSize:], nil)
	if err != nil {
		return nil, domain.ErrAeadAuthFailure
	}
	return pt, nil
}
