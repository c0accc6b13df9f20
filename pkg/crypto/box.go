package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"
)

// BoxKeySize is the Curve25519 key length in bytes.
const BoxKeySize = 32

// BoxOverhead is the size a sealed box adds to its message: an ephemeral
// public key plus the Poly1305 tag.
const BoxOverhead = box.AnonymousOverhead

// GenerateBoxKeypair generates a Curve25519 keypair for sealed-box key
// wrapping.
func GenerateBoxKeypair() (publicKey, privateKey *[32]byte, err error) {
	return box.GenerateKey(rand.Reader)
}

// SealBox seals message to a recipient's Curve25519 public key. Anyone can
// seal; only the matching private key opens. The sender leaves no identity
// in the box.
func SealBox(message []byte, recipientPub *[32]byte) ([]byte, error) {
	return box.SealAnonymous(nil, message, recipientPub, rand.Reader)
}

// OpenBox opens a sealed box with the recipient keypair. Returns
// ErrIntegrity when the box was not sealed to this keypair or was altered.
func OpenBox(sealed []byte, publicKey, privateKey *[32]byte) ([]byte, error) {
	message, ok := box.OpenAnonymous(nil, sealed, publicKey, privateKey)
	if !ok {
		return nil, ErrIntegrity
	}
	return message, nil
}
