package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// UserKeys is a user record with its private keys unwrapped. Instances live
// only in memory for the duration of a session.
type UserKeys struct {
	User *models.User

	// SigningKey signs access-proof challenges for private shares.
	SigningKey ed25519.PrivateKey

	// BoxPublicKey and BoxPrivateKey open share keys sealed to this user.
	BoxPublicKey  *[32]byte
	BoxPrivateKey *[32]byte

	// storageKey wraps and unwraps this user's folder keys. Never exposed.
	storageKey []byte
}

// NewUserKeys mints a complete user identity: identifier, both keypairs,
// a fresh KDF salt, and the wrapped privates. The same secret drives the
// login hash and the storage key; they use independent salts.
func NewUserKeys(username, secret string, role models.UserRole) (*UserKeys, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	passwordHash, err := models.HashPassword(secret)
	if err != nil {
		return nil, err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	storageKey, err := crypto.DeriveScrypt([]byte(secret), salt, crypto.DefaultScryptParams())
	if err != nil {
		return nil, err
	}

	signPub, signPriv, err := crypto.GenerateSigningKeypair()
	if err != nil {
		return nil, err
	}
	wrappedSigning, err := crypto.Encrypt(signPriv.Seed(), storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap signing key: %w", err)
	}

	boxPub, boxPriv, err := crypto.GenerateBoxKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate box keypair: %w", err)
	}
	wrappedBox, err := crypto.Encrypt(boxPriv[:], storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap box key: %w", err)
	}

	user := &models.User{
		ID:                id,
		Username:          username,
		PasswordHash:      passwordHash,
		SigningPublicKey:  hex.EncodeToString(signPub),
		WrappedSigningKey: wrappedSigning,
		BoxPublicKey:      hex.EncodeToString(boxPub[:]),
		WrappedBoxKey:     wrappedBox,
		KeySalt:           salt,
		Role:              string(role),
		Enabled:           true,
	}

	return &UserKeys{
		User:          user,
		SigningKey:    signPriv,
		BoxPublicKey:  boxPub,
		BoxPrivateKey: boxPriv,
		storageKey:    storageKey,
	}, nil
}

// UnlockUserKeys derives the storage key from the secret and unwraps the
// user's private keys, verifying each against its stored public key.
func UnlockUserKeys(user *models.User, secret string) (*UserKeys, error) {
	storageKey, err := crypto.DeriveScrypt([]byte(secret), user.KeySalt, crypto.DefaultScryptParams())
	if err != nil {
		return nil, err
	}

	seed, err := crypto.Decrypt(user.WrappedSigningKey, storageKey)
	if err != nil {
		return nil, wrapUnwrapError(err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrKeyMismatch
	}
	signPriv := ed25519.NewKeyFromSeed(seed)
	if hex.EncodeToString(signPriv.Public().(ed25519.PublicKey)) != user.SigningPublicKey {
		return nil, ErrKeyMismatch
	}

	boxBytes, err := crypto.Decrypt(user.WrappedBoxKey, storageKey)
	if err != nil {
		return nil, wrapUnwrapError(err)
	}
	if len(boxBytes) != crypto.BoxKeySize {
		return nil, ErrKeyMismatch
	}
	boxPriv := new([32]byte)
	copy(boxPriv[:], boxBytes)

	derivedPub, err := curve25519.X25519(boxPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, ErrKeyMismatch
	}
	if hex.EncodeToString(derivedPub) != user.BoxPublicKey {
		return nil, ErrKeyMismatch
	}
	boxPub := new([32]byte)
	copy(boxPub[:], derivedPub)

	return &UserKeys{
		User:          user,
		SigningKey:    signPriv,
		BoxPublicKey:  boxPub,
		BoxPrivateKey: boxPriv,
		storageKey:    storageKey,
	}, nil
}

// FolderKeys is a folder record with its private keys unwrapped.
type FolderKeys struct {
	Folder *models.Folder

	// SigningKey feeds internal subject derivation. Without it, posted
	// subjects cannot be recomputed or linked.
	SigningKey ed25519.PrivateKey

	// ContentKey encrypts and decrypts every segment body of this folder.
	ContentKey []byte
}

// Subject derives the internal subject of one segment at one version.
func (k *FolderKeys) Subject(version, segmentIndex uint32) string {
	return obfuscate.InternalSubject(k.Folder.ID, version, segmentIndex, k.SigningKey)
}

// NewFolderKeys mints a folder identity owned by the given user. Both the
// folder signing key and the content key are wrapped with the owner's
// storage key, so only the owner unlocks them.
func NewFolderKeys(owner *UserKeys, name, rootPath, newsgroup string) (*FolderKeys, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	signPub, signPriv, err := crypto.GenerateSigningKeypair()
	if err != nil {
		return nil, err
	}
	wrappedSigning, err := crypto.Encrypt(signPriv.Seed(), owner.storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap folder signing key: %w", err)
	}

	contentKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	wrappedContent, err := crypto.Encrypt(contentKey, owner.storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap content key: %w", err)
	}

	folder := &models.Folder{
		ID:                id,
		OwnerID:           owner.User.ID,
		Name:              name,
		RootPath:          rootPath,
		Newsgroup:         newsgroup,
		SigningPublicKey:  hex.EncodeToString(signPub),
		WrappedSigningKey: wrappedSigning,
		WrappedContentKey: wrappedContent,
	}

	return &FolderKeys{
		Folder:     folder,
		SigningKey: signPriv,
		ContentKey: contentKey,
	}, nil
}

// UnlockFolderKeys unwraps a folder's keys with the owner's storage key.
func UnlockFolderKeys(folder *models.Folder, owner *UserKeys) (*FolderKeys, error) {
	if folder.OwnerID != owner.User.ID {
		return nil, models.ErrFolderNotOwned
	}

	seed, err := crypto.Decrypt(folder.WrappedSigningKey, owner.storageKey)
	if err != nil {
		return nil, wrapUnwrapError(err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrKeyMismatch
	}
	signPriv := ed25519.NewKeyFromSeed(seed)
	if hex.EncodeToString(signPriv.Public().(ed25519.PublicKey)) != folder.SigningPublicKey {
		return nil, ErrKeyMismatch
	}

	contentKey, err := crypto.Decrypt(folder.WrappedContentKey, owner.storageKey)
	if err != nil {
		return nil, wrapUnwrapError(err)
	}
	if len(contentKey) != crypto.KeySize {
		return nil, ErrKeyMismatch
	}

	return &FolderKeys{
		Folder:     folder,
		SigningKey: signPriv,
		ContentKey: contentKey,
	}, nil
}

// wrapUnwrapError maps a failed AEAD open to ErrWrongSecret, keeping other
// failures intact.
func wrapUnwrapError(err error) error {
	if errors.Is(err, crypto.ErrIntegrity) {
		return ErrWrongSecret
	}
	return err
}
