package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/frahmantamala/identity-access/internal/auth"
	authDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/auth"
)

// Repository stores sessions and password reset tokens through gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CreateSession(ctx context.Context, s *auth.Session) error {
	row := authDatamodel.Session{
		ID:             s.ID.String(),
		UserID:         s.UserID.String(),
		TenantID:       s.TenantID.String(),
		RefreshTokenID: s.RefreshTokenID,
		ExpiresAt:      s.ExpiresAt,
		RevokedAt:      s.RevokedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) FindSession(ctx context.Context, id uuid.UUID) (*auth.Session, error) {
	var row authDatamodel.Session
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sessionFromRow(row)
}

func (r *Repository) RotateRefreshToken(ctx context.Context, sessionID uuid.UUID, expectedTokenID, newTokenID string, expiresAt, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&authDatamodel.Session{}).
		Where("id = ? AND refresh_token_id = ? AND revoked_at IS NULL", sessionID.String(), expectedTokenID).
		Updates(map[string]interface{}{
			"refresh_token_id": newTokenID,
			"expires_at":       expiresAt,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&authDatamodel.Session{}).
		Where("id = ? AND revoked_at IS NULL", id.String()).
		Updates(map[string]interface{}{"revoked_at": at, "updated_at": at}).Error
}

func (r *Repository) RevokeUserSessions(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&authDatamodel.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID.String()).
		Updates(map[string]interface{}{"revoked_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *Repository) SaveResetToken(ctx context.Context, t *auth.ResetToken) error {
	row := authDatamodel.PasswordResetToken{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		TokenHash: t.TokenHash,
		ExpiresAt: t.ExpiresAt,
		UsedAt:    t.UsedAt,
		CreatedAt: t.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ConsumeResetToken marks the token used with a conditional update so two
// concurrent redemptions cannot both succeed.
func (r *Repository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.ResetToken, error) {
	var consumed *auth.ResetToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&authDatamodel.PasswordResetToken{}).
			Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var row authDatamodel.PasswordResetToken
		if err := tx.Where("token_hash = ?", tokenHash).First(&row).Error; err != nil {
			return err
		}
		t, err := resetTokenFromRow(row)
		if err != nil {
			return err
		}
		consumed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func sessionFromRow(row authDatamodel.Session) (*auth.Session, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(row.UserID)
	if err != nil {
		return nil, err
	}
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		return nil, err
	}
	return &auth.Session{
		ID:             id,
		UserID:         userID,
		TenantID:       tenantID,
		RefreshTokenID: row.RefreshTokenID,
		ExpiresAt:      row.ExpiresAt,
		RevokedAt:      row.RevokedAt,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func resetTokenFromRow(row authDatamodel.PasswordResetToken) (*auth.ResetToken, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(row.UserID)
	if err != nil {
		return nil, err
	}
	return &auth.ResetToken{
		ID:        id,
		UserID:    userID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		UsedAt:    row.UsedAt,
		CreatedAt: row.CreatedAt,
	}, nil
}
