package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/internal/identity"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username,omitempty"`
	TenantID  string   `json:"tenant_id,omitempty"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid,omitempty"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

// Subject is the identity a token pair is issued for.
type Subject struct {
	UserID    uuid.UUID
	Username  string
	TenantID  uuid.UUID
	Roles     []string
	SessionID uuid.UUID
}

func subjectFor(u *identity.User, sessionID uuid.UUID) Subject {
	return Subject{
		UserID:    u.ID,
		Username:  u.Username,
		TenantID:  u.TenantID,
		Roles:     u.RoleNames(),
		SessionID: sessionID,
	}
}

// TokenIssuer creates and validates signed access and refresh tokens.
// GenerateRefreshToken also returns the token id (jti) so the caller can
// bind it to a session.
type TokenIssuer interface {
	GenerateAccessToken(sub Subject) (string, error)
	GenerateRefreshToken(sub Subject) (token string, tokenID string, err error)
	ValidateToken(token string) bool
	ParseAccessToken(token string) (*Claims, error)
	ParseRefreshToken(token string) (*Claims, error)
	ExtractUserID(token string) (uuid.UUID, error)
	ExtractUsername(token string) (string, error)
	ExtractRoles(token string) ([]string, error)
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

// Session is the server-side half of a login. Refresh tokens are only
// accepted while their jti matches RefreshTokenID.
type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TenantID       uuid.UUID
	RefreshTokenID string
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Session) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	FindSession(ctx context.Context, id uuid.UUID) (*Session, error)
	// RotateRefreshToken swaps the refresh token id only if the session is
	// unrevoked and still holds expectedTokenID. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, sessionID uuid.UUID, expectedTokenID, newTokenID string, expiresAt, now time.Time) (bool, error)
	RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeUserSessions(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// ResetToken is a single-use password reset grant. Only the SHA-256 of the
// raw token is stored.
type ResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type ResetTokenStore interface {
	SaveResetToken(ctx context.Context, t *ResetToken) error
	// ConsumeResetToken marks the token used and returns it, or returns nil
	// when it is unknown, expired or already used.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	FindByUsername(ctx context.Context, username string) (*identity.User, error)
	FindByEmail(ctx context.Context, email string) (*identity.User, error)
	Save(ctx context.Context, u *identity.User) (*identity.User, error)
}

type EventPublisher interface {
	PublishUserAuthenticated(ctx context.Context, userID, tenantID string, at time.Time) error
	PublishPasswordChanged(ctx context.Context, userID, tenantID string) error
}

// AuthenticationResult pairs the principal with a fresh token pair.
// ExpiresIn is the access token lifetime in seconds.
type AuthenticationResult struct {
	User         *identity.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}
