package auth

import (
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/authz"
	"github.com/frahmantamala/identity-access/internal/identity"
	"github.com/frahmantamala/identity-access/internal/transport"
)

// RBACAuthorization gates routes on the permissions of the principal that
// AuthMiddleware placed in the request context.
type RBACAuthorization struct {
	*transport.BaseHandler
	logger *slog.Logger
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		logger:      logger,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, permission string) http.HandlerFunc {
	return ra.check(next, []string{permission}, authz.HasAllPermissions)
}

// Middleware requires the given permission.
func (ra *RBACAuthorization) Middleware(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, permission)
	}
}

// RequireAny passes when the principal holds at least one of permissions.
func (ra *RBACAuthorization) RequireAny(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.check(next.ServeHTTP, permissions, authz.HasAnyPermission)
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.Middleware(authz.PermOrganizationAdmin)
}

func (ra *RBACAuthorization) check(next http.HandlerFunc, permissions []string, allow func(*identity.User, ...string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identity.UserFromContext(r.Context())
		if !ok {
			ra.logger.WarnContext(r.Context(), "authorization check failed: user not found in context")
			ra.HandleServiceError(w, r, errors.ErrInvalidToken)
			return
		}

		if !allow(user, permissions...) {
			ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", user.ID,
				"required_permissions", permissions,
				"user_permissions", authz.PermissionNames(user))
			ra.HandleServiceError(w, r, errors.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	}
}
