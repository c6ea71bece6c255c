package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// JWTTokenIssuer signs HS256 tokens. Access and refresh tokens use
// different secrets so neither can stand in for the other.
type JWTTokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewJWTTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *JWTTokenIssuer {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}
	return &JWTTokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		now:           time.Now,
	}
}

func (j *JWTTokenIssuer) AccessTokenTTL() time.Duration  { return j.accessTTL }
func (j *JWTTokenIssuer) RefreshTokenTTL() time.Duration { return j.refreshTTL }

// GenerateAccessToken creates a new access token
func (j *JWTTokenIssuer) GenerateAccessToken(sub Subject) (string, error) {
	claims := j.claims(sub, TokenTypeAccess, uuid.NewString(), j.accessTTL)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.accessSecret)
}

// GenerateRefreshToken creates a new refresh token and returns its jti.
// Refresh tokens carry no roles; they are re-read on rotation.
func (j *JWTTokenIssuer) GenerateRefreshToken(sub Subject) (string, string, error) {
	tokenID := uuid.NewString()
	sub.Roles = nil
	claims := j.claims(sub, TokenTypeRefresh, tokenID, j.refreshTTL)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.refreshSecret)
	if err != nil {
		return "", "", err
	}
	return token, tokenID, nil
}

func (j *JWTTokenIssuer) claims(sub Subject, tokenType, tokenID string, ttl time.Duration) *Claims {
	now := j.now()
	roles := sub.Roles
	if roles == nil {
		roles = []string{}
	}
	c := &Claims{
		UserID:    sub.UserID.String(),
		Username:  sub.Username,
		TenantID:  sub.TenantID.String(),
		Roles:     roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    j.issuer,
			Subject:   sub.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if sub.SessionID != uuid.Nil {
		c.SessionID = sub.SessionID.String()
	}
	return c
}

// ValidateToken reports whether token is a valid, unexpired access token.
func (j *JWTTokenIssuer) ValidateToken(token string) bool {
	_, err := j.ParseAccessToken(token)
	return err == nil
}

func (j *JWTTokenIssuer) ParseAccessToken(token string) (*Claims, error) {
	return j.parse(token, j.accessSecret, TokenTypeAccess)
}

func (j *JWTTokenIssuer) ParseRefreshToken(token string) (*Claims, error) {
	return j.parse(token, j.refreshSecret, TokenTypeRefresh)
}

func (j *JWTTokenIssuer) parse(tokenString string, secret []byte, tokenType string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	if !token.Valid || claims.TokenType != tokenType {
		return nil, errors.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	return claims, nil
}

func (j *JWTTokenIssuer) ExtractUserID(token string) (uuid.UUID, error) {
	claims, err := j.ParseAccessToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.UserID)
}

func (j *JWTTokenIssuer) ExtractUsername(token string) (string, error) {
	claims, err := j.ParseAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

func (j *JWTTokenIssuer) ExtractRoles(token string) ([]string, error) {
	claims, err := j.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	return claims.Roles, nil
}
