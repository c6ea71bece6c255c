package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
	"github.com/frahmantamala/identity-access/internal/identity"
)

// UserRepository implements identity.Repository using GORM. Uniqueness of
// username and email is left to the unique indexes so that concurrent
// creates cannot both succeed.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Save(ctx context.Context, u *identity.User) (*identity.User, error) {
	row := userToRow(u)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&identityDatamodel.User{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			if err := tx.Create(row).Error; err != nil {
				return translateUserConflict(err)
			}
		} else {
			if err := tx.Model(row).Select("*").Updates(row).Error; err != nil {
				return translateUserConflict(err)
			}
		}
		return replaceUserRoles(tx, row.ID, u.RoleIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, u.ID)
}

func replaceUserRoles(tx *gorm.DB, userID string, roleIDs []uuid.UUID) error {
	if err := tx.Where("user_id = ?", userID).Delete(&identityDatamodel.UserRole{}).Error; err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	now := time.Now()
	links := make([]identityDatamodel.UserRole, len(roleIDs))
	for i, id := range roleIDs {
		// offset keeps assignment order stable when read back by created_at
		links[i] = identityDatamodel.UserRole{UserID: userID, RoleID: id.String(), CreatedAt: now.Add(time.Duration(i) * time.Microsecond)}
	}
	return tx.Create(&links).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return r.findOne(ctx, "id = ?", id.String())
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*identity.User, error) {
	var row identityDatamodel.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	u := userFromRow(&row)
	if err := (resolver{db: r.db}).attachRoles(ctx, []*identity.User{u}); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) FindByTenantID(ctx context.Context, tenantID uuid.UUID, page, size int) ([]*identity.User, error) {
	var rows []identityDatamodel.User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID.String()).
		Order("created_at ASC, id ASC").
		Limit(size).
		Offset(page * size).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	users := make([]*identity.User, len(rows))
	for i := range rows {
		users[i] = userFromRow(&rows[i])
	}
	if err := (resolver{db: r.db}).attachRoles(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *UserRepository) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&identityDatamodel.User{}).Where(query, arg).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id.String()).Delete(&identityDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id.String()).Delete(&identityDatamodel.User{}).Error
	})
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&identityDatamodel.User{}).Count(&n).Error
	return n, err
}

func (r *UserRepository) CountByTenantID(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&identityDatamodel.User{}).Where("tenant_id = ?", tenantID.String()).Count(&n).Error
	return n, err
}
