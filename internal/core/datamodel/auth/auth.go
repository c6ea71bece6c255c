package auth

import "time"

type Session struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	UserID         string     `gorm:"column:user_id;type:varchar(36);not null;index"`
	TenantID       string     `gorm:"column:tenant_id;type:varchar(36);not null"`
	RefreshTokenID string     `gorm:"column:refresh_token_id;type:varchar(36);not null"`
	ExpiresAt      time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (Session) TableName() string { return "sessions" }

type PasswordResetToken struct {
	ID        string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	UserID    string     `gorm:"column:user_id;type:varchar(36);not null;index"`
	TokenHash string     `gorm:"column:token_hash;uniqueIndex;not null;size:64"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
}

func (PasswordResetToken) TableName() string { return "password_reset_tokens" }

func All() []interface{} {
	return []interface{}{&Session{}, &PasswordResetToken{}}
}
