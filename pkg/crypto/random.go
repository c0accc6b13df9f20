package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return buf, nil
}

// GenerateKey returns a fresh 32-byte symmetric key.
func GenerateKey() ([]byte, error) {
	return RandomBytes(KeySize)
}

// GenerateSalt returns a fresh KDF salt.
func GenerateSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}

// RandomHex returns n random bytes rendered as 2n lowercase hex characters.
// User and folder identifiers are RandomHex(32).
func RandomHex(n int) (string, error) {
	buf, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
