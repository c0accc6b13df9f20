package identity

import (
	"context"
	"sync"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// Service manages identities against the control-plane store and caches
// unwrapped folder keys for the life of the process.
//
// The cache holds raw key material and is therefore process-local only:
// it is dropped on folder deletion and at shutdown, and nothing in it is
// ever persisted.
type Service struct {
	store store.Store

	mu      sync.RWMutex
	folders map[string]*FolderKeys
}

// NewService creates an identity service over the given store.
func NewService(st store.Store) *Service {
	return &Service{
		store:   st,
		folders: make(map[string]*FolderKeys),
	}
}

// CreateUser mints a user identity and persists it.
func (s *Service) CreateUser(ctx context.Context, username, secret string, role models.UserRole) (*UserKeys, error) {
	keys, err := NewUserKeys(username, secret, role)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, keys.User); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "user identity created",
		"username", username,
		"user_id", keys.User.ID,
	)
	return keys, nil
}

// Unlock loads a user by username and unwraps their keys with the secret.
func (s *Service) Unlock(ctx context.Context, username, secret string) (*UserKeys, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	keys, err := UnlockUserKeys(user, secret)
	if err != nil {
		return nil, err
	}
	logger.DebugCtx(ctx, "user keys unlocked", "username", username)
	return keys, nil
}

// CreateFolder mints a folder identity under the owner, persists it and
// caches the unwrapped keys.
func (s *Service) CreateFolder(ctx context.Context, owner *UserKeys, name, rootPath, newsgroup string) (*FolderKeys, error) {
	keys, err := NewFolderKeys(owner, name, rootPath, newsgroup)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateFolder(ctx, keys.Folder); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.folders[keys.Folder.ID] = keys
	s.mu.Unlock()

	logger.InfoCtx(ctx, "folder identity created",
		logger.FolderID(keys.Folder.ID),
		logger.Path(rootPath),
		logger.Newsgroup(newsgroup),
	)
	return keys, nil
}

// UnlockFolder returns the unwrapped keys of a folder the owner holds,
// serving from cache when possible. Ownership is enforced on every call,
// cached or not.
func (s *Service) UnlockFolder(ctx context.Context, owner *UserKeys, folderID string) (*FolderKeys, error) {
	s.mu.RLock()
	cached, ok := s.folders[folderID]
	s.mu.RUnlock()
	if ok {
		if cached.Folder.OwnerID != owner.User.ID {
			return nil, models.ErrFolderNotOwned
		}
		return cached, nil
	}

	folder, err := s.store.GetOwnedFolder(ctx, folderID, owner.User.ID)
	if err != nil {
		return nil, err
	}
	keys, err := UnlockFolderKeys(folder, owner)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.folders[folderID] = keys
	s.mu.Unlock()

	logger.DebugCtx(ctx, "folder keys unlocked", logger.FolderID(folderID))
	return keys, nil
}

// DeleteFolder removes a folder the owner holds and drops its cached keys.
func (s *Service) DeleteFolder(ctx context.Context, owner *UserKeys, folderID string) error {
	if _, err := s.store.GetOwnedFolder(ctx, folderID, owner.User.ID); err != nil {
		return err
	}
	if err := s.store.DeleteFolder(ctx, folderID); err != nil {
		return err
	}
	s.Forget(folderID)
	logger.InfoCtx(ctx, "folder deleted", logger.FolderID(folderID))
	return nil
}

// Forget drops one folder's cached keys.
func (s *Service) Forget(folderID string) {
	s.mu.Lock()
	delete(s.folders, folderID)
	s.mu.Unlock()
}

// Reset drops every cached key. Called at daemon shutdown.
func (s *Service) Reset() {
	s.mu.Lock()
	s.folders = make(map[string]*FolderKeys)
	s.mu.Unlock()
}
