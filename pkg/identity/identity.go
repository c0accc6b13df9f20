// Package identity mints and unwraps the cryptographic identities behind
// users and folders.
//
// A user is a 64-hex-character identifier plus two keypairs: Ed25519 for
// signing access proofs and Curve25519 for receiving wrapped share keys. A
// folder carries its own Ed25519 keypair, whose private feeds subject
// derivation, and a symmetric content key that encrypts every segment body.
//
// Private keys exist at rest only sealed with a storage key derived from
// the owner's secret via scrypt. Identifiers are minted once; there is no
// recovery path for a lost secret.
package identity

import (
	"errors"

	"github.com/nntpvault/nntpvault/pkg/crypto"
)

var (
	// ErrWrongSecret means the supplied secret does not unwrap the stored
	// private keys.
	ErrWrongSecret = errors.New("secret does not unwrap the stored keys")

	// ErrKeyMismatch means an unwrapped private key does not correspond to
	// the stored public key. The record is damaged or was rewritten.
	ErrKeyMismatch = errors.New("unwrapped key does not match stored public key")
)

// idBytes is the entropy behind user and folder identifiers.
const idBytes = 32

// NewID mints a 64-hex-character identifier.
func NewID() (string, error) {
	return crypto.RandomHex(idBytes)
}
