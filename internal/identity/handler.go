package identity

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/transport"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, cmd CreateUserCommand) (*User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, cmd UpdateUserCommand) (*User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	ActivateUser(ctx context.Context, userID uuid.UUID) (*User, error)
	DeactivateUser(ctx context.Context, userID uuid.UUID) (*User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetAllUsers(ctx context.Context, tenantID uuid.UUID, page, size int) ([]*User, error)
	CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type RoleServiceAPI interface {
	CreatePermission(ctx context.Context, cmd CreatePermissionCommand) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreateRole(ctx context.Context, cmd CreateRoleCommand) (*Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*Role, error)
	ListRoles(ctx context.Context, tenantID *uuid.UUID) ([]Role, error)
	SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) (*Role, error)
}

// AccessPolicy decides whether the principal may act on another tenant's data
// and which permissions it may hand out.
type AccessPolicy interface {
	CanAccessTenant(principal *User, tenantID uuid.UUID) bool
	CanManageGlobal(principal *User) bool
	CanGrant(principal *User, permissions []string) bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Roles   RoleServiceAPI
	Policy  AccessPolicy
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, roles RoleServiceAPI, policy AccessPolicy) *Handler {
	return &Handler{BaseHandler: base, Service: svc, Roles: roles, Policy: policy}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, errors.ErrInvalidToken)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToUserResponse(principal))
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := UserFromContext(r.Context())

	var cmd CreateUserCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if cmd.TenantID == uuid.Nil && principal != nil {
		cmd.TenantID = principal.TenantID
	}
	if !h.allowed(principal, cmd.TenantID) {
		h.HandleServiceError(w, r, errors.ErrForbidden)
		return
	}
	if !h.authorizeRoles(w, r, principal, cmd.RoleIDs) {
		return
	}

	u, err := h.Service.CreateUser(r.Context(), cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, ToUserResponse(u))
}

// ListUsers handles GET /users?tenant_id=&page=&size=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal, _ := UserFromContext(r.Context())

	var tenantID uuid.UUID
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.HandleServiceError(w, r, errors.NewValidationFieldError("tenant_id", "tenant_id must be a UUID", errors.ErrCodeValidationFailed))
			return
		}
		tenantID = parsed
	} else if principal != nil {
		tenantID = principal.TenantID
	}
	if !h.allowed(principal, tenantID) {
		h.HandleServiceError(w, r, errors.ErrForbidden)
		return
	}

	page, size := NormalizePage(h.PageParams(r))
	users, err := h.Service.GetAllUsers(r.Context(), tenantID, page, size)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	total, err := h.Service.CountUsers(r.Context(), tenantID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	resp := UsersResponse{Users: make([]UserResponse, 0, len(users)), Page: page, Size: size, Total: total}
	for _, u := range users {
		resp.Users = append(resp.Users, ToUserResponse(u))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, ToUserResponse(u))
}

// UpdateUser handles PATCH /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.loadTarget(w, r)
	if !ok {
		return
	}

	var cmd UpdateUserCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if roleIDs, ok := cmd.RoleIDs.Get(); ok {
		principal, _ := UserFromContext(r.Context())
		if !h.authorizeRoles(w, r, principal, roleIDs) {
			return
		}
	}

	u, err := h.Service.UpdateUser(r.Context(), target.ID, cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToUserResponse(u))
}

// DeleteUser handles DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteUser(r.Context(), target.ID); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateUser handles POST /users/{id}/activate
func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.ActivateUser)
}

// DeactivateUser handles POST /users/{id}/deactivate
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.DeactivateUser)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*User, error)) {
	target, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	u, err := fn(r.Context(), target.ID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToUserResponse(u))
}

// loadTarget resolves {id} and enforces tenant scope. It writes the error
// response itself and reports whether the caller may proceed.
func (h *Handler) loadTarget(w http.ResponseWriter, r *http.Request) (*User, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, errors.NewValidationFieldError("id", "id must be a UUID", errors.ErrCodeValidationFailed))
		return nil, false
	}

	u, err := h.Service.GetUserByID(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return nil, false
	}
	principal, _ := UserFromContext(r.Context())
	// out-of-scope users are reported as missing
	if u == nil || !h.allowed(principal, u.TenantID) {
		h.HandleServiceError(w, r, errors.ErrUserNotFound)
		return nil, false
	}
	return u, true
}

func (h *Handler) allowed(principal *User, tenantID uuid.UUID) bool {
	if h.Policy == nil {
		return true
	}
	return principal != nil && h.Policy.CanAccessTenant(principal, tenantID)
}

// authorizeRoles refuses assignments that would lift a principal without
// global authority above its own permissions. Global roles need global
// authority. Unknown role ids are left to the service to reject.
func (h *Handler) authorizeRoles(w http.ResponseWriter, r *http.Request, principal *User, roleIDs []uuid.UUID) bool {
	if h.Policy == nil || len(roleIDs) == 0 || h.allowedGlobal(principal) {
		return true
	}

	var names []string
	for _, id := range roleIDs {
		role, err := h.Roles.GetRole(r.Context(), id)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return false
		}
		if role == nil {
			continue
		}
		if role.IsGlobal() {
			h.HandleServiceError(w, r, errors.ErrForbidden)
			return false
		}
		for _, p := range role.Permissions {
			names = append(names, p.Name)
		}
	}
	if !h.Policy.CanGrant(principal, names) {
		h.HandleServiceError(w, r, errors.ErrForbidden)
		return false
	}
	return true
}

// authorizePermissions refuses granting permissions the principal does not hold.
func (h *Handler) authorizePermissions(w http.ResponseWriter, r *http.Request, principal *User, permissionIDs []uuid.UUID) bool {
	if h.Policy == nil || len(permissionIDs) == 0 || h.allowedGlobal(principal) {
		return true
	}

	perms, err := h.Roles.ListPermissions(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return false
	}
	wanted := make(map[uuid.UUID]bool, len(permissionIDs))
	for _, id := range permissionIDs {
		wanted[id] = true
	}
	var names []string
	for _, p := range perms {
		if wanted[p.ID] {
			names = append(names, p.Name)
		}
	}
	if !h.Policy.CanGrant(principal, names) {
		h.HandleServiceError(w, r, errors.ErrForbidden)
		return false
	}
	return true
}

// ListPermissions handles GET /permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Roles.ListPermissions(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}

// CreatePermission handles POST /permissions
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var cmd CreatePermissionCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	p, err := h.Roles.CreatePermission(r.Context(), cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, p)
}

// ListRoles handles GET /roles; tenant roles are scoped to the principal's tenant.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	var tenantID *uuid.UUID
	if principal, ok := UserFromContext(r.Context()); ok {
		tenantID = &principal.TenantID
	}
	roles, err := h.Roles.ListRoles(r.Context(), tenantID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

// CreateRole handles POST /roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	principal, _ := UserFromContext(r.Context())

	var cmd CreateRoleCommand
	if err := h.DecodeJSON(r, &cmd); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	// global roles need cross-tenant authority
	if cmd.TenantID == nil {
		if h.Policy != nil && !h.allowedGlobal(principal) {
			h.HandleServiceError(w, r, errors.ErrForbidden)
			return
		}
	} else if !h.allowed(principal, *cmd.TenantID) {
		h.HandleServiceError(w, r, errors.ErrForbidden)
		return
	}
	if !h.authorizePermissions(w, r, principal, cmd.PermissionIDs) {
		return
	}

	role, err := h.Roles.CreateRole(r.Context(), cmd)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) allowedGlobal(principal *User) bool {
	return principal != nil && h.Policy.CanManageGlobal(principal)
}

// GetRole handles GET /roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadRole(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

// SetRolePermissions handles PUT /roles/{id}/permissions
func (h *Handler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadRole(w, r)
	if !ok {
		return
	}
	principal, _ := UserFromContext(r.Context())
	if role.TenantID == nil && h.Policy != nil && !h.allowedGlobal(principal) {
		h.HandleServiceError(w, r, errors.ErrForbidden)
		return
	}

	var req SetRolePermissionsRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if !h.authorizePermissions(w, r, principal, req.PermissionIDs) {
		return
	}
	updated, err := h.Roles.SetRolePermissions(r.Context(), role.ID, req.PermissionIDs)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) loadRole(w http.ResponseWriter, r *http.Request) (*Role, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, errors.NewValidationFieldError("id", "id must be a UUID", errors.ErrCodeValidationFailed))
		return nil, false
	}
	role, err := h.Roles.GetRole(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return nil, false
	}
	principal, _ := UserFromContext(r.Context())
	if role == nil || (role.TenantID != nil && !h.allowed(principal, *role.TenantID)) {
		h.HandleServiceError(w, r, errors.ErrRoleNotFound)
		return nil, false
	}
	return role, true
}
