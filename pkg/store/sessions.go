package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// ============================================
// SESSION OPERATIONS
// ============================================

// CreateSession records a login session. Only the SHA-256 of the bearer
// token is stored; the token itself goes back to the client and is never
// persisted.
func (s *GORMStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = time.Now()
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *GORMStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	return getByField[models.Session](s.db, ctx, "token_hash", tokenHash, models.ErrSessionNotFound)
}

func (s *GORMStore) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return listByField[models.Session](s.db, ctx, "user_id", userID, "created_at")
}

func (s *GORMStore) RevokeSession(ctx context.Context, id string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Update("revoked_at", now)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// RevokeUserSessions ends every session for one user, used at password
// change and account deletion.
func (s *GORMStore) RevokeUserSessions(ctx context.Context, userID string, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
}

// DeleteExpiredSessions removes rows whose expiry or revocation is past.
// Run from the daemon's housekeeping loop.
func (s *GORMStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
