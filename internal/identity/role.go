package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
)

// RoleService administers roles and the permission catalogue.
type RoleService struct {
	roles  RoleRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewRoleService(roles RoleRepository, logger *slog.Logger) *RoleService {
	return &RoleService{roles: roles, logger: logger, now: time.Now}
}

func (s *RoleService) CreatePermission(ctx context.Context, cmd CreatePermissionCommand) (*Permission, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.roles.FindPermissionByName(ctx, cmd.Name)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to check permission", err)
	}
	if existing != nil {
		return nil, errors.ErrDuplicatePerm
	}

	p, err := s.roles.SavePermission(ctx, &Permission{
		ID:          uuid.New(),
		Name:        cmd.Name,
		Description: cmd.Description,
		Resource:    cmd.Resource,
		Action:      cmd.Action,
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.logger.Error("failed to save permission", "name", cmd.Name, "error", err)
		return nil, errors.AsRepositoryError("failed to save permission", err)
	}
	s.logger.Info("permission created", "permission_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *RoleService) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to list permissions", err)
	}
	return perms, nil
}

func (s *RoleService) CreateRole(ctx context.Context, cmd CreateRoleCommand) (*Role, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.roles.FindRoleByName(ctx, cmd.Name)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to check role", err)
	}
	if existing != nil {
		return nil, errors.ErrDuplicateRole
	}

	permIDs, err := s.checkPermissions(ctx, cmd.PermissionIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r, err := s.roles.SaveRole(ctx, &Role{
		ID:            uuid.New(),
		Name:          cmd.Name,
		Description:   cmd.Description,
		TenantID:      cmd.TenantID,
		PermissionIDs: permIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		s.logger.Error("failed to save role", "name", cmd.Name, "error", err)
		return nil, errors.AsRepositoryError("failed to save role", err)
	}
	s.logger.Info("role created", "role_id", r.ID, "name", r.Name, "global", r.IsGlobal())
	return r, nil
}

// GetRole returns nil when the role does not exist.
func (s *RoleService) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	r, err := s.roles.FindRoleByID(ctx, id)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get role", err)
	}
	return r, nil
}

// ListRoles returns the global roles plus, when tenantID is set, that tenant's roles.
func (s *RoleService) ListRoles(ctx context.Context, tenantID *uuid.UUID) ([]Role, error) {
	roles, err := s.roles.ListRoles(ctx, tenantID)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to list roles", err)
	}
	return roles, nil
}

// SetRolePermissions replaces the permission set of a role.
func (s *RoleService) SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) (*Role, error) {
	r, err := s.roles.FindRoleByID(ctx, roleID)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get role", err)
	}
	if r == nil {
		return nil, errors.ErrRoleNotFound
	}

	ids, err := s.checkPermissions(ctx, permissionIDs)
	if err != nil {
		return nil, err
	}
	if err := s.roles.SetRolePermissions(ctx, roleID, ids); err != nil {
		s.logger.Error("failed to set role permissions", "role_id", roleID, "error", err)
		return nil, errors.AsRepositoryError("failed to set role permissions", err)
	}

	updated, err := s.roles.FindRoleByID(ctx, roleID)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to get role", err)
	}
	s.logger.Info("role permissions replaced", "role_id", roleID, "permissions", len(ids))
	return updated, nil
}

func (s *RoleService) checkPermissions(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return unique, nil
	}
	found, err := s.roles.FindPermissionsByIDs(ctx, unique)
	if err != nil {
		return nil, errors.AsRepositoryError("failed to load permissions", err)
	}
	if len(found) != len(unique) {
		return nil, errors.ErrPermissionNotFound
	}
	return unique, nil
}
