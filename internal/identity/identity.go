package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive              Status = "ACTIVE"
	StatusInactive            Status = "INACTIVE"
	StatusSuspended           Status = "SUSPENDED"
	StatusPendingVerification Status = "PENDING_VERIFICATION"
)

type User struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Status       Status      `json:"status"`
	TenantID     uuid.UUID   `json:"tenant_id"`
	RoleIDs      []uuid.UUID `json:"role_ids"`
	Roles        []Role      `json:"roles"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RoleNames returns the names of the resolved roles, never nil.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// Role is either global (TenantID nil) or owned by one tenant.
type Role struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	TenantID      *uuid.UUID   `json:"tenant_id,omitempty"`
	PermissionIDs []uuid.UUID  `json:"permission_ids"`
	Permissions   []Permission `json:"permissions"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (r *Role) IsGlobal() bool {
	return r.TenantID == nil
}

// UsableBy reports whether users of tenantID may be assigned this role.
func (r *Role) UsableBy(tenantID uuid.UUID) bool {
	return r.TenantID == nil || *r.TenantID == tenantID
}

type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository is the account store for users. Finders return (nil, nil) on a
// miss. Save must enforce username/email uniqueness atomically and report a
// violation as ErrDuplicateUsername or ErrDuplicateEmail. Returned users have
// their Roles and each role's Permissions resolved.
type Repository interface {
	Save(ctx context.Context, u *User) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByTenantID(ctx context.Context, tenantID uuid.UUID, page, size int) ([]*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
	CountByTenantID(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// RoleRepository stores roles and the permission reference data they compose.
type RoleRepository interface {
	SaveRole(ctx context.Context, r *Role) (*Role, error)
	FindRoleByID(ctx context.Context, id uuid.UUID) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	FindRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error)
	ListRoles(ctx context.Context, tenantID *uuid.UUID) ([]Role, error)
	SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error

	SavePermission(ctx context.Context, p *Permission) (*Permission, error)
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
	FindPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

type CredentialEncoder interface {
	Encode(raw string) (string, error)
	Matches(raw, hash string) bool
}

// EventPublisher is fire-and-forget; a returned error only signals that the
// notification was dropped.
type EventPublisher interface {
	PublishUserCreated(ctx context.Context, userID, tenantID, username string) error
	PublishUserUpdated(ctx context.Context, userID, tenantID string, changes map[string]interface{}) error
}

// TenantDirectory decides whether a tenant currently holding currentUsers
// accounts, whatever their status, may take one more.
type TenantDirectory interface {
	CheckAdmission(ctx context.Context, tenantID uuid.UUID, currentUsers int64) error
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps a zero-based page index and page size.
func NormalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
