package store

import (
	"context"
	"time"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// Store provides the control plane persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines.
//
// The Store interface supports both SQLite (single-node) and PostgreSQL
// backends.
type Store interface {
	// ============================================
	// USER OPERATIONS
	// ============================================

	// GetUser returns a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// GetUserByID returns a user by their 64-hex-char identity.
	// Returns models.ErrUserNotFound if no user has this ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByPublicKey returns the user holding the given hex-encoded
	// signing public key.
	// Returns models.ErrUserNotFound if no user holds it.
	GetUserByPublicKey(ctx context.Context, publicKey string) (*models.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user. The caller supplies the ID and key
	// material; nothing is generated here.
	// Returns models.ErrDuplicateUser if a user with the same username exists.
	CreateUser(ctx context.Context, user *models.User) error

	// DeleteUser deletes a user by username along with their sessions.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	DeleteUser(ctx context.Context, username string) error

	// UpdatePassword updates a user's password hash.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// SetUserEnabled enables or disables a user account. Disabled users
	// fail credential validation with models.ErrUserDisabled.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	SetUserEnabled(ctx context.Context, username string, enabled bool) error

	// UpdateLastLogin updates the user's last login timestamp.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error

	// ValidateCredentials verifies username/password credentials.
	// Returns the user if credentials are valid.
	// Returns models.ErrInvalidCredentials if the credentials are invalid.
	// Returns models.ErrUserDisabled if the user account is disabled.
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)

	// ============================================
	// FOLDER OPERATIONS
	// ============================================

	// GetFolder returns a folder by its 64-hex-char identity.
	// Returns models.ErrFolderNotFound if the folder doesn't exist.
	GetFolder(ctx context.Context, id string) (*models.Folder, error)

	// GetOwnedFolder returns a folder only when ownerID owns it.
	// Returns models.ErrFolderNotFound if the folder doesn't exist.
	// Returns models.ErrFolderNotOwned if someone else owns it.
	GetOwnedFolder(ctx context.Context, id, ownerID string) (*models.Folder, error)

	// ListFolders returns the folders owned by a user, oldest first.
	ListFolders(ctx context.Context, ownerID string) ([]*models.Folder, error)

	// CreateFolder creates a new folder record.
	// Returns models.ErrDuplicateFolder if the ID is taken.
	CreateFolder(ctx context.Context, folder *models.Folder) error

	// AdvanceFolderVersion moves the folder's current version forward and
	// stamps the index time. Versions only increase; a version at or below
	// the current one is rejected with models.ErrStaleVersion.
	// Returns models.ErrFolderNotFound if the folder doesn't exist.
	AdvanceFolderVersion(ctx context.Context, id string, version uint32) error

	// DeleteFolder soft-deletes a folder.
	// Returns models.ErrFolderNotFound if the folder doesn't exist.
	DeleteFolder(ctx context.Context, id string) error

	// ============================================
	// PUBLICATION OPERATIONS
	// ============================================

	// CreatePublication persists a publication together with its encrypted
	// index blob, authorized users and commitments in one transaction.
	// Returns models.ErrDuplicatePublication if the share ID is taken.
	CreatePublication(ctx context.Context, pub *models.Publication, authorized []models.AuthorizedUser, commitments []models.Commitment) error

	// GetPublication returns a publication by share ID with authorized
	// users and commitments preloaded.
	// Returns models.ErrUnknownShareID if no publication has this share ID.
	GetPublication(ctx context.Context, shareID string) (*models.Publication, error)

	// ListPublications returns the publications of a folder, oldest first.
	ListPublications(ctx context.Context, folderID string) ([]*models.Publication, error)

	// RevokePublication sets the publication's expiry to now.
	// Returns models.ErrUnknownShareID if no publication has this share ID.
	RevokePublication(ctx context.Context, shareID string, now time.Time) error

	// AddAuthorizedUser grants one more user access to a private share.
	// Returns models.ErrUnknownShareID if no publication has this share ID.
	AddAuthorizedUser(ctx context.Context, shareID string, authorized models.AuthorizedUser, commitment models.Commitment) error

	// ============================================
	// SESSION OPERATIONS
	// ============================================

	// CreateSession records a login session. The ID is generated if empty.
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSessionByTokenHash returns the session matching a bearer token hash.
	// Returns models.ErrSessionNotFound if no session matches.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// ListSessions returns a user's sessions, oldest first.
	ListSessions(ctx context.Context, userID string) ([]*models.Session, error)

	// RevokeSession marks one session revoked.
	// Returns models.ErrSessionNotFound if the session doesn't exist.
	RevokeSession(ctx context.Context, id string, now time.Time) error

	// RevokeUserSessions marks every live session of a user revoked.
	RevokeUserSessions(ctx context.Context, userID string, now time.Time) error

	// DeleteExpiredSessions removes expired and revoked sessions, returning
	// how many rows went away.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
