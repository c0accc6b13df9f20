package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// ScryptParams carries the tunable scrypt cost parameters. Protected shares
// persist these alongside the salt so the consumer derives the same key.
type ScryptParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// DefaultScryptParams returns the default scrypt cost parameters.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{N: DefaultScryptN, R: DefaultScryptR, P: DefaultScryptP}
}

// DeriveScrypt derives a 32-byte key from password and salt using scrypt.
func DeriveScrypt(password, salt []byte, params ScryptParams) ([]byte, error) {
	if params.N == 0 {
		params = DefaultScryptParams()
	}
	key, err := scrypt.Key(password, salt, params.N, params.R, params.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("scrypt derivation failed: %w", err)
	}
	return key, nil
}

// DerivePBKDF2 derives a 32-byte key from password and salt using
// PBKDF2-HMAC-SHA256 with the given iteration count.
func DerivePBKDF2(password, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}
