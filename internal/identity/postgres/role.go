package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/identity-access/internal"
	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
	"github.com/frahmantamala/identity-access/internal/identity"
)

// RoleRepository implements identity.RoleRepository using GORM.
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) SaveRole(ctx context.Context, role *identity.Role) (*identity.Role, error) {
	row := roleToRow(role)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&identityDatamodel.Role{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return err
		}
		var err error
		if existing == 0 {
			err = tx.Create(row).Error
		} else {
			err = tx.Model(row).Select("*").Updates(row).Error
		}
		if err != nil {
			if IsUniqueViolation(err) {
				return apperrors.ErrDuplicateRole
			}
			return err
		}
		return replaceRolePermissions(tx, row.ID, role.PermissionIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.FindRoleByID(ctx, role.ID)
}

func replaceRolePermissions(tx *gorm.DB, roleID string, permissionIDs []uuid.UUID) error {
	if err := tx.Where("role_id = ?", roleID).Delete(&identityDatamodel.RolePermission{}).Error; err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	now := time.Now()
	links := make([]identityDatamodel.RolePermission, len(permissionIDs))
	for i, id := range permissionIDs {
		links[i] = identityDatamodel.RolePermission{RoleID: roleID, PermissionID: id.String(), CreatedAt: now.Add(time.Duration(i) * time.Microsecond)}
	}
	return tx.Create(&links).Error
}

func (r *RoleRepository) FindRoleByID(ctx context.Context, id uuid.UUID) (*identity.Role, error) {
	roles, err := (resolver{db: r.db}).roles(ctx, []string{id.String()})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}
	return &roles[0], nil
}

func (r *RoleRepository) FindRoleByName(ctx context.Context, name string) (*identity.Role, error) {
	var row identityDatamodel.Role
	if err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindRoleByID(ctx, parseID(row.ID))
}

func (r *RoleRepository) FindRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.Role, error) {
	return (resolver{db: r.db}).roles(ctx, idStrings(ids))
}

func (r *RoleRepository) ListRoles(ctx context.Context, tenantID *uuid.UUID) ([]identity.Role, error) {
	q := r.db.WithContext(ctx).Model(&identityDatamodel.Role{})
	if tenantID != nil {
		q = q.Where("tenant_id IS NULL OR tenant_id = ?", tenantID.String())
	} else {
		q = q.Where("tenant_id IS NULL")
	}

	var rows []identityDatamodel.Role
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]identity.Role, len(rows))
	for i := range rows {
		roles[i] = roleFromRow(&rows[i])
	}
	if err := (resolver{db: r.db}).attachPermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepository) SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&identityDatamodel.Role{}).Where("id = ?", roleID.String()).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrRoleNotFound
		}
		return replaceRolePermissions(tx, roleID.String(), permissionIDs)
	})
}

func (r *RoleRepository) SavePermission(ctx context.Context, p *identity.Permission) (*identity.Permission, error) {
	row := permissionToRow(p)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, apperrors.ErrDuplicatePerm
		}
		return nil, err
	}
	saved := permissionFromRow(row)
	return &saved, nil
}

func (r *RoleRepository) FindPermissionByName(ctx context.Context, name string) (*identity.Permission, error) {
	var row identityDatamodel.Permission
	if err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	p := permissionFromRow(&row)
	return &p, nil
}

func (r *RoleRepository) FindPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.Permission, error) {
	if len(ids) == 0 {
		return []identity.Permission{}, nil
	}
	var rows []identityDatamodel.Permission
	if err := r.db.WithContext(ctx).Where("id IN ?", idStrings(ids)).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]identity.Permission, len(rows))
	for i := range rows {
		out[i] = permissionFromRow(&rows[i])
	}
	return out, nil
}

func (r *RoleRepository) ListPermissions(ctx context.Context) ([]identity.Permission, error) {
	var rows []identityDatamodel.Permission
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]identity.Permission, len(rows))
	for i := range rows {
		out[i] = permissionFromRow(&rows[i])
	}
	return out, nil
}
