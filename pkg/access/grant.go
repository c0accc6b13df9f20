package access

import (
	"encoding/hex"
	"fmt"

	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// Grant seals the share key to one user and mints their membership
// commitment. The returned rows name the user only by public keys; the
// commitment digest is the sole link to the user ID, and it does not
// reverse.
func Grant(shareKey []byte, shareID string, user *models.User) (models.AuthorizedUser, models.Commitment, error) {
	boxPub, err := decodeBoxKey(user.BoxPublicKey)
	if err != nil {
		return models.AuthorizedUser{}, models.Commitment{}, err
	}

	wrapped, err := crypto.SealBox(shareKey, boxPub)
	if err != nil {
		return models.AuthorizedUser{}, models.Commitment{}, fmt.Errorf("failed to wrap share key: %w", err)
	}

	authorized := models.AuthorizedUser{
		ShareID:          shareID,
		SigningPublicKey: user.SigningPublicKey,
		BoxPublicKey:     user.BoxPublicKey,
		WrappedShareKey:  wrapped,
	}
	commitment := models.Commitment{
		ShareID: shareID,
		Digest:  CommitmentDigest(user.ID, shareID),
	}
	return authorized, commitment, nil
}

// CommitmentDigest derives the opaque membership token of one user on
// one share.
func CommitmentDigest(userID, shareID string) string {
	return crypto.SHA256Hex([]byte(userID + shareID))
}

// HoldsCommitment reports whether the publication carries a membership
// commitment for the given user.
func HoldsCommitment(pub *models.Publication, userID string) bool {
	want := CommitmentDigest(userID, pub.ShareID)
	for _, c := range pub.Commitments {
		if c.Digest == want {
			return true
		}
	}
	return false
}

func decodeBoxKey(hexKey string) (*[32]byte, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != crypto.BoxKeySize {
		return nil, fmt.Errorf("malformed box public key %q", hexKey)
	}
	key := new([32]byte)
	copy(key[:], raw)
	return key, nil
}
