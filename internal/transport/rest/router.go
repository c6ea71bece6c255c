package rest

import (
	"database/sql"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/identity-access/api"
	"github.com/frahmantamala/identity-access/internal/auth"
	"github.com/frahmantamala/identity-access/internal/authz"
	"github.com/frahmantamala/identity-access/internal/identity"
	"github.com/frahmantamala/identity-access/internal/obs"
	"github.com/frahmantamala/identity-access/internal/organization"
	"github.com/frahmantamala/identity-access/internal/transport"
	"github.com/frahmantamala/identity-access/internal/transport/middleware"
	"github.com/frahmantamala/identity-access/internal/transport/swagger"
)

type Deps struct {
	DB             *sql.DB
	Base           *transport.BaseHandler
	Auth           *auth.Handler
	Identity       *identity.Handler
	Organization   *organization.Handler
	RBAC           *auth.RBACAuthorization
	LoginLimiter   *middleware.RateLimiter
	AllowedOrigins string
	MetricsPath    string
}

func RegisterAllRoutes(router *chi.Mux, deps Deps) {
	healthHandler := NewHealthHandler(deps.Base, deps.DB)
	rbac := deps.RBAC

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(obs.Instrument)

	router.Get(swagger.DocumentPath, swagger.Document(api.Spec))
	router.Handle("/swagger/*", swagger.Handler())
	if deps.MetricsPath != "" {
		router.Handle(deps.MetricsPath, obs.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ping", healthHandler.Ping)

		r.Route("/auth", func(ar chi.Router) {
			ar.Group(func(lr chi.Router) {
				if deps.LoginLimiter != nil {
					lr.Use(deps.LoginLimiter.Middleware)
				}
				lr.Post("/login", deps.Auth.Login)
				lr.Post("/refresh", deps.Auth.RefreshToken)
				lr.Post("/password/reset", deps.Auth.ResetPassword)
			})
			ar.Post("/password/reset/confirm", deps.Auth.ConfirmPasswordReset)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(deps.Auth.AuthMiddleware)

			pr.Post("/auth/logout", deps.Auth.Logout)
			pr.Post("/auth/password", deps.Auth.ChangePassword)
			pr.Get("/users/me", deps.Identity.GetCurrentUser)

			pr.Route("/users", func(ur chi.Router) {
				ur.With(rbac.Middleware(authz.PermUserRead)).Get("/", deps.Identity.ListUsers)
				ur.With(rbac.Middleware(authz.PermUserWrite)).Post("/", deps.Identity.CreateUser)
				ur.With(rbac.Middleware(authz.PermUserRead)).Get("/{id}", deps.Identity.GetUser)
				ur.With(rbac.Middleware(authz.PermUserWrite)).Patch("/{id}", deps.Identity.UpdateUser)
				ur.With(rbac.Middleware(authz.PermUserDelete)).Delete("/{id}", deps.Identity.DeleteUser)
				ur.With(rbac.Middleware(authz.PermUserWrite)).Post("/{id}/activate", deps.Identity.ActivateUser)
				ur.With(rbac.Middleware(authz.PermUserWrite)).Post("/{id}/deactivate", deps.Identity.DeactivateUser)
			})

			pr.Route("/permissions", func(rr chi.Router) {
				rr.With(rbac.Middleware(authz.PermRoleRead)).Get("/", deps.Identity.ListPermissions)
				rr.With(rbac.RequireAdmin()).Post("/", deps.Identity.CreatePermission)
			})

			pr.Route("/roles", func(rr chi.Router) {
				rr.With(rbac.Middleware(authz.PermRoleRead)).Get("/", deps.Identity.ListRoles)
				rr.With(rbac.Middleware(authz.PermRoleWrite)).Post("/", deps.Identity.CreateRole)
				rr.With(rbac.Middleware(authz.PermRoleRead)).Get("/{id}", deps.Identity.GetRole)
				rr.With(rbac.Middleware(authz.PermRoleWrite)).Put("/{id}/permissions", deps.Identity.SetRolePermissions)
			})

			pr.Route("/organizations", func(or chi.Router) {
				or.Get("/current", deps.Organization.Current)
				or.Group(func(admin chi.Router) {
					admin.Use(rbac.RequireAdmin())
					admin.Get("/", deps.Organization.List)
					admin.Post("/", deps.Organization.Onboard)
					admin.Get("/{id}", deps.Organization.Get)
					admin.Patch("/{id}", deps.Organization.Update)
					admin.Put("/{id}/status", deps.Organization.ChangeStatus)
				})
			})
		})
	})
}
