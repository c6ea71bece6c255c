package organization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusTrial     Status = "TRIAL"
)

type Type string

const (
	TypeEnterprise Type = "ENTERPRISE"
	TypeSMB        Type = "SMB"
	TypeStartup    Type = "STARTUP"
	TypeNonProfit  Type = "NON_PROFIT"
	TypeGovernment Type = "GOVERNMENT"
)

const (
	DefaultMaxUsers = 100
	DefaultPlan     = "basic"
)

// Organization is a tenant. It is never hard-deleted; INACTIVE models removal.
type Organization struct {
	ID                    uuid.UUID  `json:"id"`
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	DisplayName           string     `json:"display_name,omitempty"`
	Description           string     `json:"description,omitempty"`
	Status                Status     `json:"status"`
	Type                  Type       `json:"type"`
	Email                 string     `json:"email,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	Website               string     `json:"website,omitempty"`
	ParentID              *uuid.UUID `json:"parent_id,omitempty"`
	MaxUsers              int        `json:"max_users"`
	SubscriptionPlan      string     `json:"subscription_plan"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (o *Organization) IsActive() bool {
	return o.Status == StatusActive
}

// IsSubscriptionValid holds when there is no expiry or it lies after now.
func (o *Organization) IsSubscriptionValid(now time.Time) bool {
	return o.SubscriptionExpiresAt == nil || o.SubscriptionExpiresAt.After(now)
}

// AcceptsUsers reports whether new accounts may be opened in this tenant.
func (o *Organization) AcceptsUsers(now time.Time) bool {
	switch o.Status {
	case StatusActive, StatusTrial:
		return o.IsSubscriptionValid(now)
	default:
		return false
	}
}

// Repository stores organizations. Finders return (nil, nil) on a miss;
// Save reports a taken code as ErrDuplicateOrganization.
type Repository interface {
	Save(ctx context.Context, o *Organization) (*Organization, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	FindByCode(ctx context.Context, code string) (*Organization, error)
	List(ctx context.Context, status *Status, page, size int) ([]*Organization, error)
}
