package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/identity-access/internal"
	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
	identityPostgres "github.com/frahmantamala/identity-access/internal/identity/postgres"
	"github.com/frahmantamala/identity-access/internal/organization"
)

// OrganizationRepository implements organization.Repository using GORM
type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Save(ctx context.Context, o *organization.Organization) (*organization.Organization, error) {
	row := toRow(o)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&identityDatamodel.Organization{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			return tx.Create(row).Error
		}
		return tx.Model(row).Select("*").Updates(row).Error
	})
	if err != nil {
		if identityPostgres.IsUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateOrganization
		}
		return nil, err
	}
	return fromRow(row), nil
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	return r.findOne(ctx, "id = ?", id.String())
}

func (r *OrganizationRepository) FindByCode(ctx context.Context, code string) (*organization.Organization, error) {
	return r.findOne(ctx, "code = ?", code)
}

func (r *OrganizationRepository) findOne(ctx context.Context, query string, arg interface{}) (*organization.Organization, error) {
	var row identityDatamodel.Organization
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *OrganizationRepository) List(ctx context.Context, status *organization.Status, page, size int) ([]*organization.Organization, error) {
	q := r.db.WithContext(ctx).Model(&identityDatamodel.Organization{})
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}

	var rows []identityDatamodel.Organization
	if err := q.Order("code ASC").Limit(size).Offset(page * size).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*organization.Organization, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, nil
}

func toRow(o *organization.Organization) *identityDatamodel.Organization {
	var parent *string
	if o.ParentID != nil {
		s := o.ParentID.String()
		parent = &s
	}
	return &identityDatamodel.Organization{
		ID:                    o.ID.String(),
		Code:                  o.Code,
		Name:                  o.Name,
		DisplayName:           o.DisplayName,
		Description:           o.Description,
		Status:                string(o.Status),
		Type:                  string(o.Type),
		Email:                 o.Email,
		Phone:                 o.Phone,
		Website:               o.Website,
		ParentID:              parent,
		MaxUsers:              o.MaxUsers,
		SubscriptionPlan:      o.SubscriptionPlan,
		SubscriptionExpiresAt: o.SubscriptionExpiresAt,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func fromRow(row *identityDatamodel.Organization) *organization.Organization {
	var parent *uuid.UUID
	if row.ParentID != nil {
		if id, err := uuid.Parse(*row.ParentID); err == nil {
			parent = &id
		}
	}
	id, _ := uuid.Parse(row.ID)
	return &organization.Organization{
		ID:                    id,
		Code:                  row.Code,
		Name:                  row.Name,
		DisplayName:           row.DisplayName,
		Description:           row.Description,
		Status:                organization.Status(row.Status),
		Type:                  organization.Type(row.Type),
		Email:                 row.Email,
		Phone:                 row.Phone,
		Website:               row.Website,
		ParentID:              parent,
		MaxUsers:              row.MaxUsers,
		SubscriptionPlan:      row.SubscriptionPlan,
		SubscriptionExpiresAt: row.SubscriptionExpiresAt,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}
