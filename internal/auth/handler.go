package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/identity"
	"github.com/frahmantamala/identity-access/internal/transport"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, cmd LoginCommand) (*AuthenticationResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthenticationResult, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ValidateAccessToken(ctx context.Context, token string) (*Claims, error)
	ChangePassword(ctx context.Context, cmd ChangePasswordCommand) error
	ResetPassword(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, cmd ConfirmPasswordResetCommand) error
}

// UserLookup loads the principal named by a validated token.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*identity.User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Users   UserLookup
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, users UserLookup) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
		Users:       users,
	}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var cmd LoginCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	res, err := h.Service.Authenticate(r.Context(), cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToAuthResponse(res))
}

// RefreshToken handles POST /auth/refresh
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	res, err := h.Service.RefreshToken(r.Context(), dto.RefreshToken)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToAuthResponse(res))
}

// Logout handles POST /auth/logout. Requires AuthMiddleware.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidToken)
		return
	}
	if err := h.Service.Logout(r.Context(), principal.ID); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles POST /auth/password. Requires AuthMiddleware.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrInvalidToken)
		return
	}

	var cmd ChangePasswordCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	cmd.UserID = principal.ID

	if err := h.Service.ChangePassword(r.Context(), cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword handles POST /auth/password/reset. The response is the same
// whether or not the email is registered.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	token, err := h.Service.ResetPassword(r.Context(), dto.Email)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, ResetPasswordResponse{ResetToken: token})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var cmd ConfirmPasswordResetCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := h.Service.ConfirmPasswordReset(r.Context(), cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware validates the bearer token, loads the principal with its
// roles resolved and stores it in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleServiceError(w, r, internal.ErrInvalidToken)
			return
		}

		claims, err := h.Service.ValidateAccessToken(r.Context(), token)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			h.HandleServiceError(w, r, internal.ErrInvalidToken.WithCause(err))
			return
		}

		user, err := h.Users.GetUserByID(r.Context(), userID)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		if user == nil || !user.IsActive() {
			logger.From(r.Context()).Warn("auth middleware: token for missing or inactive user", "user_id", userID)
			h.HandleServiceError(w, r, internal.ErrInvalidToken)
			return
		}

		ctx := identity.ContextWithUser(r.Context(), user)
		ctx = internal.ContextWithPrincipal(ctx, user.ID.String(), user.TenantID.String())
		ctx = logger.With(ctx, "user_id", user.ID.String(), "tenant_id", user.TenantID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
