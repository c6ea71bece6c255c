package postgres

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/identity-access/internal"
	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
	"github.com/frahmantamala/identity-access/internal/identity"
)

const pgUniqueViolation = "23505"

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func parseOptionalID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := parseID(*s)
	return &id
}

func optionalString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func userToRow(u *identity.User) *identityDatamodel.User {
	return &identityDatamodel.User{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Status:       string(u.Status),
		TenantID:     u.TenantID.String(),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromRow(row *identityDatamodel.User) *identity.User {
	return &identity.User{
		ID:           parseID(row.ID),
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Status:       identity.Status(row.Status),
		TenantID:     parseID(row.TenantID),
		RoleIDs:      []uuid.UUID{},
		Roles:        []identity.Role{},
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func roleToRow(r *identity.Role) *identityDatamodel.Role {
	return &identityDatamodel.Role{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		TenantID:    optionalString(r.TenantID),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromRow(row *identityDatamodel.Role) identity.Role {
	return identity.Role{
		ID:            parseID(row.ID),
		Name:          row.Name,
		Description:   row.Description,
		TenantID:      parseOptionalID(row.TenantID),
		PermissionIDs: []uuid.UUID{},
		Permissions:   []identity.Permission{},
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func permissionToRow(p *identity.Permission) *identityDatamodel.Permission {
	return &identityDatamodel.Permission{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Resource:    p.Resource,
		Action:      p.Action,
		CreatedAt:   p.CreatedAt,
	}
}

func permissionFromRow(row *identityDatamodel.Permission) identity.Permission {
	return identity.Permission{
		ID:          parseID(row.ID),
		Name:        row.Name,
		Description: row.Description,
		Resource:    row.Resource,
		Action:      row.Action,
		CreatedAt:   row.CreatedAt,
	}
}

// IsUniqueViolation recognises unique-index failures from postgres (pgx) and
// sqlite, with or without gorm error translation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// conflictTarget returns the constraint or column text that identifies which
// unique index rejected the write.
func conflictTarget(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail)
	}
	return strings.ToLower(err.Error())
}

func translateUserConflict(err error) error {
	if !IsUniqueViolation(err) {
		return err
	}
	target := conflictTarget(err)
	switch {
	case strings.Contains(target, "email"):
		return apperrors.ErrDuplicateEmail
	case strings.Contains(target, "username"):
		return apperrors.ErrDuplicateUsername
	default:
		return apperrors.ErrDuplicateIdentity.WithCause(err)
	}
}
