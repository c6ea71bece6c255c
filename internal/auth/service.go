package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/core/common/validation"
	"github.com/frahmantamala/identity-access/internal/identity"
	"github.com/frahmantamala/identity-access/internal/obs"
)

const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeError              = "error"

	defaultResetTTL = 30 * time.Minute
	decoyPassword   = "decoy-password-for-unknown-users"
)

// Service is the main auth service with dependencies
type Service struct {
	users     UserRepository
	encoder   identity.CredentialEncoder
	tokens    TokenIssuer
	sessions  SessionStore
	resets    ResetTokenStore
	publisher EventPublisher
	logger    *slog.Logger
	resetTTL  time.Duration
	now       func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

type Option func(*Service)

func WithResetTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new auth service
func NewService(users UserRepository, encoder identity.CredentialEncoder, tokens TokenIssuer, sessions SessionStore, resets ResetTokenStore, publisher EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:     users,
		encoder:   encoder,
		tokens:    tokens,
		sessions:  sessions,
		resets:    resets,
		publisher: publisher,
		logger:    logger,
		resetTTL:  defaultResetTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate validates credentials and returns tokens. Unknown users,
// inactive users and wrong passwords all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, cmd LoginCommand) (*AuthenticationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.FindByUsername(ctx, cmd.Username)
	if err != nil {
		obs.AuthAttempts.WithLabelValues(outcomeError).Inc()
		s.logger.Error("failed to load user for authentication", "error", err)
		return nil, errors.AsRepositoryError("failed to load user", err)
	}

	if u == nil {
		// spend the same hashing work as a real comparison
		s.encoder.Matches(cmd.Password, s.decoy())
		return nil, s.reject("unknown username", uuid.Nil)
	}
	if !s.encoder.Matches(cmd.Password, u.PasswordHash) {
		return nil, s.reject("password mismatch", u.ID)
	}
	if !u.IsActive() {
		return nil, s.reject("user not active", u.ID)
	}
	if cmd.TenantID != nil && *cmd.TenantID != u.TenantID {
		return nil, s.reject("tenant mismatch", u.ID)
	}

	res, err := s.openSession(ctx, u)
	if err != nil {
		obs.AuthAttempts.WithLabelValues(outcomeError).Inc()
		return nil, err
	}
	obs.AuthAttempts.WithLabelValues(outcomeSuccess).Inc()
	s.logger.Info("user authenticated", "user_id", u.ID, "tenant_id", u.TenantID)

	if err := s.publisher.PublishUserAuthenticated(ctx, u.ID.String(), u.TenantID.String(), s.now()); err != nil {
		s.logger.Warn("user authenticated notification dropped", "user_id", u.ID, "error", err)
	}
	return res, nil
}

func (s *Service) reject(reason string, userID uuid.UUID) error {
	obs.AuthAttempts.WithLabelValues(outcomeInvalidCredentials).Inc()
	s.logger.Info("authentication rejected", "reason", reason, "user_id", userID)
	return errors.ErrInvalidCredentials
}

func (s *Service) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.encoder.Encode(decoyPassword)
		if err != nil {
			s.logger.Warn("failed to prepare decoy hash", "error", err)
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

func (s *Service) openSession(ctx context.Context, u *identity.User) (*AuthenticationResult, error) {
	sub := subjectFor(u, uuid.New())
	access, err := s.tokens.GenerateAccessToken(sub)
	if err != nil {
		s.logger.Error("failed to sign access token", "user_id", u.ID, "error", err)
		return nil, errors.NewInternalError("failed to issue token", err)
	}
	refresh, tokenID, err := s.tokens.GenerateRefreshToken(sub)
	if err != nil {
		s.logger.Error("failed to sign refresh token", "user_id", u.ID, "error", err)
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	now := s.now()
	if err := s.sessions.CreateSession(ctx, &Session{
		ID:             sub.SessionID,
		UserID:         u.ID,
		TenantID:       u.TenantID,
		RefreshTokenID: tokenID,
		ExpiresAt:      now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		s.logger.Error("failed to open session", "user_id", u.ID, "error", err)
		return nil, errors.AsRepositoryError("failed to open session", err)
	}

	return s.result(u, access, refresh), nil
}

func (s *Service) result(u *identity.User, access, refresh string) *AuthenticationResult {
	return &AuthenticationResult{
		User:         u,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTokenTTL() / time.Second),
	}
}

// RefreshToken rotates the token pair of an active session. A refresh token
// can be used once; presenting a superseded one revokes the session.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*AuthenticationResult, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}

	session, err := s.sessions.FindSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		return nil, errors.AsRepositoryError("failed to load session", err)
	}
	now := s.now()
	if session == nil || session.UserID != userID || !session.IsActive(now) {
		return nil, errors.ErrInvalidToken
	}
	if session.RefreshTokenID != claims.ID {
		s.logger.Warn("refresh token replayed, revoking session", "session_id", sessionID, "user_id", userID)
		if err := s.sessions.RevokeSession(ctx, sessionID, now); err != nil {
			s.logger.Error("failed to revoke session", "session_id", sessionID, "error", err)
		}
		return nil, errors.ErrInvalidToken
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user for refresh", "user_id", userID, "error", err)
		return nil, errors.AsRepositoryError("failed to load user", err)
	}
	if u == nil || !u.IsActive() {
		return nil, errors.ErrInvalidToken
	}

	sub := subjectFor(u, sessionID)
	access, err := s.tokens.GenerateAccessToken(sub)
	if err != nil {
		return nil, errors.NewInternalError("failed to issue token", err)
	}
	refresh, tokenID, err := s.tokens.GenerateRefreshToken(sub)
	if err != nil {
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	rotated, err := s.sessions.RotateRefreshToken(ctx, sessionID, claims.ID, tokenID, now.Add(s.tokens.RefreshTokenTTL()), now)
	if err != nil {
		s.logger.Error("failed to rotate refresh token", "session_id", sessionID, "error", err)
		return nil, errors.AsRepositoryError("failed to rotate refresh token", err)
	}
	if !rotated {
		return nil, errors.ErrInvalidToken
	}

	s.logger.Info("tokens refreshed", "user_id", u.ID, "session_id", sessionID)
	return s.result(u, access, refresh), nil
}

// Logout revokes every session of the user. Access tokens bound to those
// sessions stop validating immediately.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	n, err := s.sessions.RevokeUserSessions(ctx, userID, s.now())
	if err != nil {
		s.logger.Error("failed to revoke sessions", "user_id", userID, "error", err)
		return errors.AsRepositoryError("failed to revoke sessions", err)
	}
	s.logger.Info("user logged out", "user_id", userID, "sessions_revoked", n)
	return nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	if claims.SessionID == "" {
		return claims, nil
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	session, err := s.sessions.FindSession(ctx, sessionID)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to load session", err)
	}
	if session == nil || !session.IsActive(s.now()) {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) ChangePassword(ctx context.Context, cmd ChangePasswordCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	u, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return errors.AsRepositoryError("failed to load user", err)
	}
	if u == nil {
		return errors.ErrUserNotFound
	}
	if !s.encoder.Matches(cmd.CurrentPassword, u.PasswordHash) {
		s.logger.Info("password change rejected", "user_id", u.ID)
		return errors.ErrInvalidCredentials
	}

	if err := s.storePassword(ctx, u, cmd.NewPassword); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", u.ID)
	s.notifyPasswordChanged(ctx, u)
	return nil
}

// ResetPassword always returns a fresh token so callers cannot tell whether
// the email belongs to an account. The token is only redeemable when it does.
func (s *Service) ResetPassword(ctx context.Context, email string) (string, error) {
	v := validation.NewValidator()
	v.Field("email", email).Required()
	if err := v.Validate(); err != nil {
		return "", err
	}

	raw, err := GenerateRandomToken()
	if err != nil {
		return "", errors.NewInternalError("failed to generate reset token", err)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to load user for reset", "error", err)
		return "", errors.AsRepositoryError("failed to load user", err)
	}
	if u == nil || !u.IsActive() {
		s.logger.Info("password reset requested for unknown or inactive account")
		return raw, nil
	}

	now := s.now()
	if err := s.resets.SaveResetToken(ctx, &ResetToken{
		ID:        uuid.New(),
		UserID:    u.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}); err != nil {
		s.logger.Error("failed to save reset token", "user_id", u.ID, "error", err)
		return "", errors.AsRepositoryError("failed to save reset token", err)
	}
	s.logger.Info("password reset issued", "user_id", u.ID)
	return raw, nil
}

// ConfirmPasswordReset redeems a reset token once, sets the new password and
// ends every open session of the user.
func (s *Service) ConfirmPasswordReset(ctx context.Context, cmd ConfirmPasswordResetCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := s.now()
	rt, err := s.resets.ConsumeResetToken(ctx, hashToken(cmd.Token), now)
	if err != nil {
		s.logger.Error("failed to consume reset token", "error", err)
		return errors.AsRepositoryError("failed to consume reset token", err)
	}
	if rt == nil {
		return errors.ErrInvalidToken
	}

	u, err := s.users.FindByID(ctx, rt.UserID)
	if err != nil {
		return errors.AsRepositoryError("failed to load user", err)
	}
	if u == nil {
		return errors.ErrInvalidToken
	}

	if err := s.storePassword(ctx, u, cmd.NewPassword); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeUserSessions(ctx, u.ID, now); err != nil {
		s.logger.Error("failed to revoke sessions after reset", "user_id", u.ID, "error", err)
	}
	s.logger.Info("password reset completed", "user_id", u.ID)
	s.notifyPasswordChanged(ctx, u)
	return nil
}

func (s *Service) storePassword(ctx context.Context, u *identity.User, raw string) error {
	hash, err := s.encoder.Encode(raw)
	if err != nil {
		s.logger.Error("failed to encode password", "user_id", u.ID, "error", err)
		return errors.NewInternalError("failed to encode password", err)
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	if _, err := s.users.Save(ctx, u); err != nil {
		s.logger.Error("failed to save password", "user_id", u.ID, "error", err)
		return errors.AsRepositoryError("failed to save password", err)
	}
	return nil
}

func (s *Service) notifyPasswordChanged(ctx context.Context, u *identity.User) {
	if err := s.publisher.PublishPasswordChanged(ctx, u.ID.String(), u.TenantID.String()); err != nil {
		s.logger.Warn("password changed notification dropped", "user_id", u.ID, "error", err)
	}
}
