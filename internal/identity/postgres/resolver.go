package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
	"github.com/frahmantamala/identity-access/internal/identity"
)

// resolver loads the role and permission graph for a batch of users or roles
// with one query per table, joining by identifier in memory.
type resolver struct {
	db *gorm.DB
}

func (r resolver) attachRoles(ctx context.Context, users []*identity.User) error {
	if len(users) == 0 {
		return nil
	}
	userIDs := make([]string, len(users))
	for i, u := range users {
		userIDs[i] = u.ID.String()
	}

	var links []identityDatamodel.UserRole
	if err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at ASC, role_id ASC").
		Find(&links).Error; err != nil {
		return err
	}

	roleIDs := make([]string, 0, len(links))
	for _, l := range links {
		roleIDs = append(roleIDs, l.RoleID)
	}
	roles, err := r.roles(ctx, roleIDs)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]identity.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	byUser := make(map[string][]identityDatamodel.UserRole, len(users))
	for _, l := range links {
		byUser[l.UserID] = append(byUser[l.UserID], l)
	}
	for _, u := range users {
		for _, l := range byUser[u.ID.String()] {
			id := parseID(l.RoleID)
			u.RoleIDs = append(u.RoleIDs, id)
			if role, ok := byID[id]; ok {
				u.Roles = append(u.Roles, role)
			}
		}
	}
	return nil
}

// roles loads roles by id with their permissions, in the order of ids.
func (r resolver) roles(ctx context.Context, ids []string) ([]identity.Role, error) {
	if len(ids) == 0 {
		return []identity.Role{}, nil
	}
	var rows []identityDatamodel.Role
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]identityDatamodel.Role, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	out := make([]identity.Role, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, roleFromRow(&row))
		}
	}
	if err := r.attachPermissions(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r resolver) attachPermissions(ctx context.Context, roles []identity.Role) error {
	if len(roles) == 0 {
		return nil
	}
	roleIDs := make([]string, len(roles))
	for i, role := range roles {
		roleIDs[i] = role.ID.String()
	}

	var links []identityDatamodel.RolePermission
	if err := r.db.WithContext(ctx).
		Where("role_id IN ?", roleIDs).
		Order("created_at ASC, permission_id ASC").
		Find(&links).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	permIDs := make([]string, 0, len(links))
	for _, l := range links {
		permIDs = append(permIDs, l.PermissionID)
	}
	var perms []identityDatamodel.Permission
	if err := r.db.WithContext(ctx).Where("id IN ?", permIDs).Find(&perms).Error; err != nil {
		return err
	}
	byID := make(map[string]identity.Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = permissionFromRow(&p)
	}

	byRole := make(map[string][]string, len(roles))
	for _, l := range links {
		byRole[l.RoleID] = append(byRole[l.RoleID], l.PermissionID)
	}
	for i := range roles {
		for _, pid := range byRole[roles[i].ID.String()] {
			roles[i].PermissionIDs = append(roles[i].PermissionIDs, parseID(pid))
			if p, ok := byID[pid]; ok {
				roles[i].Permissions = append(roles[i].Permissions, p)
			}
		}
	}
	return nil
}
