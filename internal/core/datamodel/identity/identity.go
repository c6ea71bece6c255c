package identity

import "time"

type Organization struct {
	ID                    string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	Code                  string     `gorm:"column:code;uniqueIndex;not null;size:50"`
	Name                  string     `gorm:"column:name;not null"`
	DisplayName           string     `gorm:"column:display_name"`
	Description           string     `gorm:"column:description"`
	Status                string     `gorm:"column:status;not null;size:20"`
	Type                  string     `gorm:"column:type;not null;size:20"`
	Email                 string     `gorm:"column:email"`
	Phone                 string     `gorm:"column:phone;size:50"`
	Website               string     `gorm:"column:website"`
	ParentID              *string    `gorm:"column:parent_id;type:varchar(36);index"`
	MaxUsers              int        `gorm:"column:max_users;not null"`
	SubscriptionPlan      string     `gorm:"column:subscription_plan;size:50"`
	SubscriptionExpiresAt *time.Time `gorm:"column:subscription_expires_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (Organization) TableName() string { return "organizations" }

type User struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	Username     string    `gorm:"column:username;uniqueIndex;not null;size:50"`
	Email        string    `gorm:"column:email;uniqueIndex;not null;size:255"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Status       string    `gorm:"column:status;not null;size:30"`
	TenantID     string    `gorm:"column:tenant_id;type:varchar(36);not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_users_created"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (User) TableName() string { return "users" }

type Role struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	Name        string    `gorm:"column:name;uniqueIndex;not null;size:100"`
	Description string    `gorm:"column:description"`
	TenantID    *string   `gorm:"column:tenant_id;type:varchar(36);index"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	Name        string    `gorm:"column:name;uniqueIndex;not null;size:100"`
	Description string    `gorm:"column:description"`
	Resource    string    `gorm:"column:resource;not null;size:50"`
	Action      string    `gorm:"column:action;not null;size:50"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Permission) TableName() string { return "permissions" }

type UserRole struct {
	UserID    string    `gorm:"column:user_id;primaryKey;type:varchar(36)"`
	RoleID    string    `gorm:"column:role_id;primaryKey;type:varchar(36)"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (UserRole) TableName() string { return "user_roles" }

type RolePermission struct {
	RoleID       string    `gorm:"column:role_id;primaryKey;type:varchar(36)"`
	PermissionID string    `gorm:"column:permission_id;primaryKey;type:varchar(36)"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (RolePermission) TableName() string { return "role_permissions" }

// All lists the identity tables in dependency order, for AutoMigrate in
// sqlite mode and tests.
func All() []interface{} {
	return []interface{}{&Organization{}, &Permission{}, &Role{}, &RolePermission{}, &User{}, &UserRole{}}
}
