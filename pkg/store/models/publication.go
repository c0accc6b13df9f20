package models

import (
	"fmt"
	"time"
)

// AccessLevel is the policy class of a publication.
type AccessLevel string

const (
	// AccessPublic derives the index key from the share ID alone.
	AccessPublic AccessLevel = "public"
	// AccessPrivate wraps the index key per authorized user.
	AccessPrivate AccessLevel = "private"
	// AccessProtected derives the index key from a password.
	AccessProtected AccessLevel = "protected"
)

// IsValid checks if the level is a known AccessLevel.
func (l AccessLevel) IsValid() bool {
	return l == AccessPublic || l == AccessPrivate || l == AccessProtected
}

// Publication is one issued share: an opaque share ID resolving to an
// encrypted index over a specific folder version.
//
// The share ID carries no derivable relationship to the folder, its owner
// or its segments. The record is immutable after creation except for
// expiry and, on private shares, the authorized-user set.
type Publication struct {
	ShareID string `gorm:"primaryKey;size:32" json:"share_id"`

	FolderID      string `gorm:"index;not null;size:64" json:"folder_id"`
	FolderVersion uint32 `gorm:"not null" json:"folder_version"`

	AccessLevel string `gorm:"not null;size:20" json:"access_level"`

	// EncryptedIndex is the sealed index blob. It never exists in
	// plaintext at rest.
	EncryptedIndex []byte `gorm:"not null" json:"-"`

	// KDF parameters for protected shares. The password itself is never
	// retained in any form.
	KDFSalt []byte `json:"-"`
	ScryptN int    `json:"-"`
	ScryptR int    `json:"-"`
	ScryptP int    `json:"-"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	AuthorizedUsers []AuthorizedUser `gorm:"foreignKey:ShareID" json:"-"`
	Commitments     []Commitment     `gorm:"foreignKey:ShareID" json:"-"`
}

// TableName returns the table name for Publication.
func (Publication) TableName() string {
	return "publications"
}

// Validate checks if the publication record is complete.
func (p *Publication) Validate() error {
	if len(p.ShareID) != 24 {
		return fmt.Errorf("share ID must be 24 characters, got %d", len(p.ShareID))
	}
	if p.FolderID == "" {
		return fmt.Errorf("folder ID is required")
	}
	if !AccessLevel(p.AccessLevel).IsValid() {
		return fmt.Errorf("invalid access level %q", p.AccessLevel)
	}
	if len(p.EncryptedIndex) == 0 {
		return fmt.Errorf("encrypted index is required")
	}
	if AccessLevel(p.AccessLevel) == AccessProtected && len(p.KDFSalt) == 0 {
		return fmt.Errorf("protected share requires a KDF salt")
	}
	return nil
}

// Expired reports whether the publication is past its expiry.
func (p *Publication) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// AuthorizedUser grants one user access to a private share.
//
// The row names the user only by public keys; the plaintext user ID appears
// nowhere. WrappedShareKey is the index key sealed to the user's Curve25519
// key, openable only with the matching private.
type AuthorizedUser struct {
	ShareID          string `gorm:"primaryKey;size:32" json:"share_id"`
	SigningPublicKey string `gorm:"primaryKey;size:64" json:"signing_public_key"`
	BoxPublicKey     string `gorm:"not null;size:64" json:"box_public_key"`
	WrappedShareKey  []byte `gorm:"not null" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for AuthorizedUser.
func (AuthorizedUser) TableName() string {
	return "authorized_users"
}

// Commitment is an opaque membership token for a private share: the digest
// of (user ID, share ID) proving a user was authorized without listing them.
type Commitment struct {
	ShareID string `gorm:"primaryKey;size:32" json:"share_id"`
	Digest  string `gorm:"primaryKey;size:64" json:"digest"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Commitment.
func (Commitment) TableName() string {
	return "commitments"
}
