package store

import (
	"context"
	"time"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// ============================================
// FOLDER OPERATIONS
// ============================================

func (s *GORMStore) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	return getByField[models.Folder](s.db, ctx, "id", id, models.ErrFolderNotFound)
}

// GetOwnedFolder loads a folder and enforces ownership.
func (s *GORMStore) GetOwnedFolder(ctx context.Context, id, ownerID string) (*models.Folder, error) {
	folder, err := s.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, models.ErrFolderNotOwned
	}
	return folder, nil
}

func (s *GORMStore) ListFolders(ctx context.Context, ownerID string) ([]*models.Folder, error) {
	return listByField[models.Folder](s.db, ctx, "owner_id", ownerID, "created_at")
}

func (s *GORMStore) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if err := folder.Validate(); err != nil {
		return err
	}
	folder.CreatedAt = time.Now()
	return create(s.db, ctx, folder, models.ErrDuplicateFolder)
}

// AdvanceFolderVersion bumps the folder to the given version and stamps the
// index time. The version must move forward; concurrent re-index attempts
// lose the race instead of silently rewinding.
func (s *GORMStore) AdvanceFolderVersion(ctx context.Context, id string, version uint32) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ? AND current_version < ?", id, version).
		Updates(map[string]any{
			"current_version": version,
			"indexed_at":      now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the folder does not exist or the version did not advance.
		var folder models.Folder
		if err := s.db.WithContext(ctx).Where("id = ?", id).First(&folder).Error; err != nil {
			return convertNotFoundError(err, models.ErrFolderNotFound)
		}
		return models.ErrStaleVersion
	}
	return nil
}

// DeleteFolder removes the folder logically. The row stays behind a soft
// delete so historical publications keep resolving their snapshot.
func (s *GORMStore) DeleteFolder(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Folder{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFolderNotFound
	}
	return nil
}
