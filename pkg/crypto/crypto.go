// Package crypto provides the cryptographic primitives used across the
// storage pipeline: AES-256-GCM payload encryption, Ed25519 signing for
// folder artifacts and access proofs, password-based key derivation for
// protected shares, and SHA-256 content hashing.
//
// All randomness comes from crypto/rand. Keys are raw 32-byte slices; no
// key material is ever logged or persisted in cleartext by this package.
package crypto

import "errors"

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	// SaltSize is the default salt length for password KDFs.
	SaltSize = 16

	// DefaultScryptN is the scrypt CPU/memory cost parameter.
	DefaultScryptN = 16384

	// DefaultScryptR is the scrypt block size parameter.
	DefaultScryptR = 8

	// DefaultScryptP is the scrypt parallelism parameter.
	DefaultScryptP = 1

	// DefaultPBKDF2Iterations is the PBKDF2-HMAC-SHA256 iteration count.
	DefaultPBKDF2Iterations = 100_000
)

var (
	// ErrInvalidKeySize is returned when a key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrCiphertextTooShort is returned when sealed data cannot contain a
	// nonce and tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrIntegrity is returned when GCM authentication fails. Callers treat
	// it as evidence of tampering or of a wrong key.
	ErrIntegrity = errors.New("integrity check failed")
)
