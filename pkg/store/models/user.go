package models

import (
	"fmt"
	"time"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a regular user with limited permissions.
	RoleUser UserRole = "user"
	// RoleAdmin is an administrator with full permissions.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a local identity that owns folders and proves access to private
// shares.
//
// The ID is minted once from 32 random bytes and never regenerated; losing
// the secret that wraps the private keys is losing the identity. Private
// keys are stored only in wrapped form, sealed with a key derived from the
// user secret.
type User struct {
	ID           string `gorm:"primaryKey;size:64" json:"id"`
	Username     string `gorm:"uniqueIndex;not null;size:255" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`

	// SigningPublicKey is the hex Ed25519 key access proofs are verified
	// against.
	SigningPublicKey  string `gorm:"not null;size:64" json:"signing_public_key"`
	WrappedSigningKey []byte `gorm:"not null" json:"-"`

	// BoxPublicKey is the hex Curve25519 key share keys are wrapped to.
	BoxPublicKey  string `gorm:"not null;size:64" json:"box_public_key"`
	WrappedBoxKey []byte `gorm:"not null" json:"-"`

	// KeySalt feeds the scrypt derivation of the storage key.
	KeySalt []byte `gorm:"not null" json:"-"`

	Role      string     `gorm:"default:user;size:50" json:"role"`
	Enabled   bool       `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate checks if the user record is complete.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if len(u.ID) != 64 {
		return fmt.Errorf("user ID must be 64 hex characters, got %d", len(u.ID))
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}
