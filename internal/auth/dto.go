package auth

import (
	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/internal/core/common/validation"
	"github.com/frahmantamala/identity-access/internal/identity"
)

// LoginCommand optionally scopes the lookup to a tenant.
type LoginCommand struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
}

func (c *LoginCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("username", c.Username).Required()
	v.Field("password", c.Password).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d *RefreshTokenDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("refresh_token", d.RefreshToken).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ChangePasswordCommand struct {
	UserID          uuid.UUID `json:"-"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
}

func (c *ChangePasswordCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("user_id", c.UserID).Required()
	v.Field("current_password", c.CurrentPassword).Required()
	validation.ValidatePassword(v, "new_password", c.NewPassword)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ResetPasswordDTO struct {
	Email string `json:"email"`
}

type ResetPasswordResponse struct {
	ResetToken string `json:"reset_token"`
}

type ConfirmPasswordResetCommand struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (c *ConfirmPasswordResetCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("token", c.Token).Required()
	validation.ValidatePassword(v, "new_password", c.NewPassword)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// AuthResponse is the wire form of an AuthenticationResult.
type AuthResponse struct {
	AccessToken  string                `json:"access_token"`
	RefreshToken string                `json:"refresh_token"`
	TokenType    string                `json:"token_type"`
	ExpiresIn    int64                 `json:"expires_in"`
	User         identity.UserResponse `json:"user"`
}

func ToAuthResponse(res *AuthenticationResult) AuthResponse {
	return AuthResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    res.ExpiresIn,
		User:         identity.ToUserResponse(res.User),
	}
}
