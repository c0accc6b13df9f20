// Package access implements the per-share key policy: deriving,
// wrapping and unwrapping the symmetric key that seals a publication's
// index blob.
//
// Public shares derive the key from the share handle itself, so holding
// the handle is holding the key. Protected shares derive it from a
// password through scrypt with per-share parameters. Private shares
// carry the key sealed once per authorized user; a challenge/response
// proof over the user's signing key gates which sealed copy may be
// opened. Verification is local to the caller, so the carrier and any
// passive observer learn nothing about who accessed which share.
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

var (
	// ErrPermissionDenied means the access proof matched no authorized
	// key of the share.
	ErrPermissionDenied = errors.New("no authorized key matches the access proof")

	// ErrAuthFailure means the presented credentials failed against the
	// index blob's authentication tag.
	ErrAuthFailure = errors.New("share credentials rejected")

	// ErrPasswordRequired means a protected share was opened without a
	// password.
	ErrPasswordRequired = errors.New("protected share requires a password")

	// ErrUserRequired means a private share was opened without an
	// unlocked user identity.
	ErrUserRequired = errors.New("private share requires an unlocked user identity")

	// ErrKeyUnwrap means an authorized user's sealed key copy did not
	// open with their keypair; the grant record is damaged.
	ErrKeyUnwrap = errors.New("failed to unwrap share key")
)

// Credentials carries whatever a caller presents to unlock a share.
// Public shares need neither field.
type Credentials struct {
	// Password unlocks protected shares.
	Password string

	// User unlocks private shares.
	User *identity.UserKeys
}

// PublicKey derives the index key of a public share. Anyone who holds
// the share ID derives the same key.
func PublicKey(shareID, folderID string) []byte {
	return crypto.SHA256([]byte(shareID + folderID))
}

// ProtectedKey derives the index key of a protected share from its
// password and the share's stored KDF parameters.
func ProtectedKey(password string, salt []byte, params crypto.ScryptParams) ([]byte, error) {
	return crypto.DeriveScrypt([]byte(password), salt, params)
}

// Unlock returns the index key of a publication for the presented
// credentials. For private shares this runs the challenge/response gate
// against the authorized set and opens the caller's sealed key copy.
//
// A wrong protected-share password is not detectable here; it surfaces
// when the derived key fails against the blob, see Open.
func Unlock(pub *models.Publication, creds Credentials) ([]byte, error) {
	if pub.Expired(time.Now()) {
		return nil, models.ErrPublicationExpired
	}

	switch models.AccessLevel(pub.AccessLevel) {
	case models.AccessPublic:
		return PublicKey(pub.ShareID, pub.FolderID), nil

	case models.AccessProtected:
		if creds.Password == "" {
			return nil, ErrPasswordRequired
		}
		return ProtectedKey(creds.Password, pub.KDFSalt, crypto.ScryptParams{
			N: pub.ScryptN,
			R: pub.ScryptR,
			P: pub.ScryptP,
		})

	case models.AccessPrivate:
		if creds.User == nil {
			return nil, ErrUserRequired
		}
		return unlockPrivate(pub, creds.User)

	default:
		return nil, fmt.Errorf("unknown access level %q", pub.AccessLevel)
	}
}

// Open unlocks the publication and decrypts its index blob. This is
// where a wrong protected-share password fails: the derived key cannot
// authenticate the blob.
func Open(pub *models.Publication, creds Credentials) ([]byte, error) {
	key, err := Unlock(pub, creds)
	if err != nil {
		return nil, err
	}

	plain, err := crypto.Decrypt(pub.EncryptedIndex, key)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrity) {
			return nil, ErrAuthFailure
		}
		return nil, err
	}
	return plain, nil
}

// unlockPrivate proves the user against the authorized set, then opens
// the matched row's sealed key copy with the user's box keypair.
func unlockPrivate(pub *models.Publication, user *identity.UserKeys) ([]byte, error) {
	challenge, err := NewChallenge()
	if err != nil {
		return nil, err
	}
	proof := Prove(challenge, pub.ShareID, user.SigningKey)

	row, err := VerifyProof(challenge, pub.ShareID, proof, pub.AuthorizedUsers)
	if err != nil {
		return nil, err
	}

	key, err := crypto.OpenBox(row.WrappedShareKey, user.BoxPublicKey, user.BoxPrivateKey)
	if err != nil {
		return nil, ErrKeyUnwrap
	}
	if len(key) != crypto.KeySize {
		return nil, ErrKeyUnwrap
	}
	return key, nil
}
