package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/core/common/validation"
	"github.com/frahmantamala/identity-access/internal/core/patch"
)

type CreateUserCommand struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	RoleIDs   []uuid.UUID `json:"role_ids"`
}

func (c *CreateUserCommand) Validate() error {
	v := validation.NewValidator()
	validation.ValidateUsername(v, c.Username)
	validation.ValidateEmail(v, "email", c.Email)
	validation.ValidatePassword(v, "password", c.Password)
	v.Field("first_name", c.FirstName).MaxLength(100)
	v.Field("last_name", c.LastName).MaxLength(100)
	v.Field("tenant_id", c.TenantID).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateUserCommand carries only the fields the caller supplied.
type UpdateUserCommand struct {
	FirstName patch.Field[string]      `json:"first_name"`
	LastName  patch.Field[string]      `json:"last_name"`
	Email     patch.Field[string]      `json:"email"`
	RoleIDs   patch.Field[[]uuid.UUID] `json:"role_ids"`
}

func (c *UpdateUserCommand) Validate() error {
	v := validation.NewValidator()
	if email, ok := c.Email.Get(); ok {
		validation.ValidateEmail(v, "email", email)
	}
	if first, ok := c.FirstName.Get(); ok {
		v.Field("first_name", first).MaxLength(100)
	}
	if last, ok := c.LastName.Get(); ok {
		v.Field("last_name", last).MaxLength(100)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *UpdateUserCommand) IsEmpty() bool {
	return !c.FirstName.IsSet() && !c.LastName.IsSet() && !c.Email.IsSet() && !c.RoleIDs.IsSet()
}

type CreateRoleCommand struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	TenantID      *uuid.UUID  `json:"tenant_id,omitempty"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

func (c *CreateRoleCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("name", c.Name).Required().MinLength(2).MaxLength(100)
	v.Field("description", c.Description).MaxLength(500)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type CreatePermissionCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
}

// Validate fills in the conventional "resource:action" name when it is omitted.
func (c *CreatePermissionCommand) Validate() error {
	v := validation.NewValidator()
	v.Field("resource", c.Resource).Required().MaxLength(50)
	v.Field("action", c.Action).Required().MaxLength(50)
	if err := v.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = fmt.Sprintf("%s:%s", strings.ToLower(c.Resource), strings.ToLower(c.Action))
	}
	if len(c.Name) > 100 {
		return errors.NewValidationFieldError("name", "name must not exceed 100 characters", errors.ErrCodeValidationFailed)
	}
	return nil
}
