// Package authz is the authorization check: pure predicates over a user's
// resolved roles and permissions. It performs no I/O and never mutates.
package authz

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/internal/identity"
)

const (
	PermUserRead          = "user:read"
	PermUserWrite         = "user:write"
	PermUserDelete        = "user:delete"
	PermRoleRead          = "role:read"
	PermRoleWrite         = "role:write"
	PermOrganizationAdmin = "organization:admin"
)

// Catalogue is the permission set the HTTP adapter checks against. The seeder
// creates exactly these.
var Catalogue = []identity.Permission{
	{Name: PermUserRead, Resource: "user", Action: "read", Description: "Read user accounts"},
	{Name: PermUserWrite, Resource: "user", Action: "write", Description: "Create and modify user accounts"},
	{Name: PermUserDelete, Resource: "user", Action: "delete", Description: "Delete user accounts"},
	{Name: PermRoleRead, Resource: "role", Action: "read", Description: "Read roles and permissions"},
	{Name: PermRoleWrite, Resource: "role", Action: "write", Description: "Manage roles and permissions"},
	{Name: PermOrganizationAdmin, Resource: "organization", Action: "admin", Description: "Administer organizations across tenants"},
}

// HasPermission reports whether any of the user's roles grants permission.
// Names compare case-insensitively.
func HasPermission(u *identity.User, permission string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		for _, p := range role.Permissions {
			if strings.EqualFold(p.Name, permission) {
				return true
			}
		}
	}
	return false
}

func HasAnyPermission(u *identity.User, permissions ...string) bool {
	for _, p := range permissions {
		if HasPermission(u, p) {
			return true
		}
	}
	return false
}

func HasAllPermissions(u *identity.User, permissions ...string) bool {
	for _, p := range permissions {
		if !HasPermission(u, p) {
			return false
		}
	}
	return true
}

func HasRole(u *identity.User, role string) bool {
	return u != nil && u.HasRole(role)
}

// PermissionNames flattens the user's effective permissions, lowercased,
// deduplicated and sorted.
func PermissionNames(u *identity.User) []string {
	if u == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, role := range u.Roles {
		for _, p := range role.Permissions {
			seen[strings.ToLower(p.Name)] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CanAccessTenant reports whether u may act on resources of tenantID:
// principals act on their own tenant, organization admins on any.
func CanAccessTenant(u *identity.User, tenantID uuid.UUID) bool {
	if u == nil {
		return false
	}
	return u.TenantID == tenantID || HasPermission(u, PermOrganizationAdmin)
}

// TenantPolicy adapts the tenant checks to identity.AccessPolicy.
type TenantPolicy struct{}

func (TenantPolicy) CanAccessTenant(principal *identity.User, tenantID uuid.UUID) bool {
	return CanAccessTenant(principal, tenantID)
}

// CanManageGlobal holds for organization admins, who alone may touch global roles.
func (TenantPolicy) CanManageGlobal(principal *identity.User) bool {
	return HasPermission(principal, PermOrganizationAdmin)
}

// CanGrant reports whether principal may hand out every named permission.
// Organization admins may grant anything; everyone else only what they hold.
func (TenantPolicy) CanGrant(principal *identity.User, permissions []string) bool {
	return HasPermission(principal, PermOrganizationAdmin) || HasAllPermissions(principal, permissions...)
}
