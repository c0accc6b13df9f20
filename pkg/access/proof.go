package access

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// ChallengeSize is the proof challenge length in bytes.
const ChallengeSize = 32

// NewChallenge mints a random 256-bit challenge.
func NewChallenge() ([]byte, error) {
	return crypto.RandomBytes(ChallengeSize)
}

// Prove signs challenge‖shareID with the user's signing key. The share
// ID binds the proof to one share so it cannot be replayed elsewhere.
func Prove(challenge []byte, shareID string, key ed25519.PrivateKey) []byte {
	return crypto.Sign(proofMessage(challenge, shareID), key)
}

// VerifyProof checks the proof against every authorized signing key and
// returns the row that matches, or ErrPermissionDenied.
func VerifyProof(challenge []byte, shareID string, proof []byte, authorized []models.AuthorizedUser) (*models.AuthorizedUser, error) {
	msg := proofMessage(challenge, shareID)

	for i := range authorized {
		pub, err := hex.DecodeString(authorized[i].SigningPublicKey)
		if err != nil {
			continue
		}
		if crypto.Verify(msg, proof, ed25519.PublicKey(pub)) {
			return &authorized[i], nil
		}
	}
	return nil, ErrPermissionDenied
}

func proofMessage(challenge []byte, shareID string) []byte {
	msg := make([]byte, 0, len(challenge)+len(shareID))
	msg = append(msg, challenge...)
	msg = append(msg, shareID...)
	return msg
}
