package identity

import (
	"time"

	"github.com/google/uuid"
)

type RoleSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
}

type UserResponse struct {
	ID        uuid.UUID     `json:"id"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Status    Status        `json:"status"`
	TenantID  uuid.UUID     `json:"tenant_id"`
	Roles     []RoleSummary `json:"roles"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type UsersResponse struct {
	Users []UserResponse `json:"users"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Total int64          `json:"total"`
}

type SetRolePermissionsRequest struct {
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

func ToUserResponse(u *User) UserResponse {
	roles := make([]RoleSummary, 0, len(u.Roles))
	for _, r := range u.Roles {
		perms := make([]string, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			perms = append(perms, p.Name)
		}
		roles = append(roles, RoleSummary{ID: r.ID, Name: r.Name, Permissions: perms})
	}
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    u.Status,
		TenantID:  u.TenantID,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
