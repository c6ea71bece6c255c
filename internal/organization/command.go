package organization

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/internal/core/common/validation"
	"github.com/frahmantamala/identity-access/internal/core/patch"
)

var codePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var (
	statuses = []string{string(StatusActive), string(StatusInactive), string(StatusSuspended), string(StatusTrial)}
	types    = []string{string(TypeEnterprise), string(TypeSMB), string(TypeStartup), string(TypeNonProfit), string(TypeGovernment)}
)

type OnboardCommand struct {
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	DisplayName           string     `json:"display_name"`
	Description           string     `json:"description"`
	Status                Status     `json:"status"`
	Type                  Type       `json:"type"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone"`
	Website               string     `json:"website"`
	ParentID              *uuid.UUID `json:"parent_id"`
	MaxUsers              int        `json:"max_users"`
	SubscriptionPlan      string     `json:"subscription_plan"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
}

func (c *OnboardCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("code", c.Code).
		Required().
		MinLength(2).
		MaxLength(50).
		Matches(codePattern, "code may only contain lowercase letters, digits and '-'")
	v.Field("name", c.Name).Required().MaxLength(255)
	v.Field("status", string(c.Status)).OneOf(statuses...)
	v.Field("type", string(c.Type)).OneOf(types...)
	v.Field("max_users", c.MaxUsers).MinInt(0)
	if c.Email != "" {
		validation.ValidateEmail(v, "email", c.Email)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateCommand applies only the present fields. A present null parent_id
// detaches the organization from its parent.
type UpdateCommand struct {
	Name                  patch.Field[string]     `json:"name"`
	DisplayName           patch.Field[string]     `json:"display_name"`
	Description           patch.Field[string]     `json:"description"`
	Email                 patch.Field[string]     `json:"email"`
	Phone                 patch.Field[string]     `json:"phone"`
	Website               patch.Field[string]     `json:"website"`
	MaxUsers              patch.Field[int]        `json:"max_users"`
	SubscriptionPlan      patch.Field[string]     `json:"subscription_plan"`
	SubscriptionExpiresAt patch.Field[*time.Time] `json:"subscription_expires_at"`
	ParentID              patch.Field[*uuid.UUID] `json:"parent_id"`
}

func (c *UpdateCommand) Validate() error {
	v := validation.NewValidator()
	if name, ok := c.Name.Get(); ok {
		v.Field("name", name).Required().MaxLength(255)
	}
	if maxUsers, ok := c.MaxUsers.Get(); ok {
		v.Field("max_users", maxUsers).MinInt(1)
	}
	if email, ok := c.Email.Get(); ok && email != "" {
		validation.ValidateEmail(v, "email", email)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ChangeStatusCommand struct {
	Status Status `json:"status"`
}

func (c *ChangeStatusCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("status", string(c.Status)).Required().OneOf(statuses...)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
