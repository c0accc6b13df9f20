package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Folder is a logical grouping rooted at a local path.
//
// Each folder carries its own Ed25519 keypair for deriving internal subjects
// and a symmetric content key that encrypts segment bodies; both privates
// are wrapped with the owning user's storage key. Folder keys are generated
// once and never rotated; rotation means a new folder.
type Folder struct {
	ID      string `gorm:"primaryKey;size:64" json:"id"`
	OwnerID string `gorm:"index;not null;size:64" json:"owner_id"`

	Name     string `gorm:"not null;size:255" json:"name"`
	RootPath string `gorm:"not null;size:4096" json:"root_path"`

	// Newsgroup is where this folder's articles are posted.
	Newsgroup string `gorm:"not null;size:255" json:"newsgroup"`

	// CurrentVersion advances on each re-index that detects changes.
	CurrentVersion uint32 `gorm:"not null;default:0" json:"current_version"`

	SigningPublicKey  string `gorm:"not null;size:64" json:"signing_public_key"`
	WrappedSigningKey []byte `gorm:"not null" json:"-"`
	WrappedContentKey []byte `gorm:"not null" json:"-"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	IndexedAt *time.Time     `json:"indexed_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the table name for Folder.
func (Folder) TableName() string {
	return "folders"
}

// Validate checks if the folder record is complete.
func (f *Folder) Validate() error {
	if len(f.ID) != 64 {
		return fmt.Errorf("folder ID must be 64 hex characters, got %d", len(f.ID))
	}
	if f.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if f.RootPath == "" {
		return fmt.Errorf("root path is required")
	}
	if f.Newsgroup == "" {
		return fmt.Errorf("newsgroup is required")
	}
	return nil
}
