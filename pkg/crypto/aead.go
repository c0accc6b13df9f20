package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Encrypt seals plaintext with AES-256-GCM under key. The returned buffer is
// nonce || ciphertext || tag, with a fresh random 96-bit nonce per call.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce so everything travels in
	// one buffer.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a buffer produced by Encrypt. It returns ErrIntegrity when
// the tag does not verify, which also covers decryption under a wrong key.
func Decrypt(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < NonceSize+TagSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// SealedLen returns the sealed length for a plaintext of n bytes.
func SealedLen(n int) int {
	return NonceSize + n + TagSize
}

// PlaintextLen returns the plaintext length for a sealed buffer of n bytes,
// or -1 when n is too small to be valid.
func PlaintextLen(n int) int {
	if n < NonceSize+TagSize {
		return -1
	}
	return n - NonceSize - TagSize
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
