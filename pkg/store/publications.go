package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// ============================================
// PUBLICATION OPERATIONS
// ============================================

// CreatePublication persists a publication with its encrypted index blob
// and, for private shares, the authorized-user rows and commitments. The
// whole write is one transaction; a share ID never becomes visible without
// its blob and policy.
func (s *GORMStore) CreatePublication(ctx context.Context, pub *models.Publication, authorized []models.AuthorizedUser, commitments []models.Commitment) error {
	if err := pub.Validate(); err != nil {
		return err
	}
	pub.CreatedAt = time.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pub).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrDuplicatePublication
			}
			return err
		}

		for i := range authorized {
			authorized[i].ShareID = pub.ShareID
			if err := tx.Create(&authorized[i]).Error; err != nil {
				return err
			}
		}

		for i := range commitments {
			commitments[i].ShareID = pub.ShareID
			if err := tx.Create(&commitments[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *GORMStore) GetPublication(ctx context.Context, shareID string) (*models.Publication, error) {
	return getByField[models.Publication](s.db, ctx, "share_id", shareID, models.ErrUnknownShareID, "AuthorizedUsers", "Commitments")
}

func (s *GORMStore) ListPublications(ctx context.Context, folderID string) ([]*models.Publication, error) {
	return listByField[models.Publication](s.db, ctx, "folder_id", folderID, "created_at")
}

// RevokePublication sets the expiry to now. Already-posted segments remain
// addressable by anyone who captured their Message-IDs; revocation only
// stops new resolutions.
func (s *GORMStore) RevokePublication(ctx context.Context, shareID string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Publication{}).
		Where("share_id = ?", shareID).
		Update("expires_at", now)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUnknownShareID
	}
	return nil
}

// AddAuthorizedUser extends a private share's authorized set. The only
// mutation a publication permits after creation.
func (s *GORMStore) AddAuthorizedUser(ctx context.Context, shareID string, authorized models.AuthorizedUser, commitment models.Commitment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pub models.Publication
		if err := tx.Where("share_id = ?", shareID).First(&pub).Error; err != nil {
			return convertNotFoundError(err, models.ErrUnknownShareID)
		}

		authorized.ShareID = shareID
		if err := tx.Create(&authorized).Error; err != nil {
			return err
		}

		commitment.ShareID = shareID
		return tx.Create(&commitment).Error
	})
}
