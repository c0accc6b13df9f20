package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// AddFolder registers a local directory as a managed folder, minting its
// signing keypair and content key under the owner's storage key. The
// root must exist and be a directory; an empty name defaults to its base
// name.
func (c *Coordinator) AddFolder(ctx context.Context, owner *identity.UserKeys, name, rootPath, newsgroup string) (*models.Folder, error) {
	if _, err := ownerID(owner); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat folder root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("folder root %s is not a directory", rootPath)
	}
	if name == "" {
		name = filepath.Base(abs)
	}

	keys, err := identity.NewFolderKeys(owner, name, abs, newsgroup)
	if err != nil {
		return nil, err
	}
	if err := c.store.CreateFolder(ctx, keys.Folder); err != nil {
		return nil, err
	}
	c.keys.PutFolder(keys)

	logger.Info("folder added",
		logger.FolderID(keys.Folder.ID),
		logger.Path(abs),
		logger.Newsgroup(newsgroup))
	return keys.Folder, nil
}

// Folder returns one folder record. Ownership is enforced.
func (c *Coordinator) Folder(ctx context.Context, owner *identity.UserKeys, folderID string) (*models.Folder, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	return c.store.GetOwnedFolder(ctx, folderID, uid)
}

// ListFolders returns the owner's folders, oldest first.
func (c *Coordinator) ListFolders(ctx context.Context, owner *identity.UserKeys) ([]*models.Folder, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	return c.store.ListFolders(ctx, uid)
}

// RemoveFolder forgets a folder: its index records and staged copies are
// dropped, its cached keys wiped and the control plane row soft-deleted.
// Articles already posted stay upstream; nothing can retract them. A
// folder with any operation still running, downloads included, is
// refused.
func (c *Coordinator) RemoveFolder(ctx context.Context, owner *identity.UserKeys, folderID string) error {
	uid, err := ownerID(owner)
	if err != nil {
		return err
	}
	if _, err := c.store.GetOwnedFolder(ctx, folderID, uid); err != nil {
		return err
	}
	if c.ops.anyRunning(folderID) {
		return ErrFolderBusy
	}

	if err := c.idx.DeleteFolder(ctx, folderID); err != nil {
		return err
	}
	if err := c.stage.DeleteFolder(ctx, folderID); err != nil {
		return err
	}
	if err := c.store.DeleteFolder(ctx, folderID); err != nil {
		return err
	}
	c.keys.InvalidateFolder(folderID)

	logger.Info("folder removed", logger.FolderID(folderID))
	return nil
}
