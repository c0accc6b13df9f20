package models

import "errors"

// Common errors for identity and control plane operations.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Folder errors
	ErrFolderNotFound  = errors.New("folder not found")
	ErrDuplicateFolder = errors.New("folder already exists")
	ErrFolderNotOwned  = errors.New("folder is owned by another user")
	ErrStaleVersion    = errors.New("folder version did not advance")

	// Publication errors
	ErrUnknownShareID       = errors.New("unknown share id")
	ErrDuplicatePublication = errors.New("publication already exists")
	ErrPublicationExpired   = errors.New("publication has expired")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
)
