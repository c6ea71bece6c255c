package events

import (
	"time"

	"github.com/frahmantamala/identity-access/internal/ids"
)

const (
	EventTypeUserCreated       = "identity.user.created"
	EventTypeUserUpdated       = "identity.user.updated"
	EventTypeUserAuthenticated = "identity.user.authenticated"
	EventTypePasswordChanged   = "identity.user.password_changed"
)

// AllIdentityEventTypes lists every notification the identity core emits.
var AllIdentityEventTypes = []string{
	EventTypeUserCreated,
	EventTypeUserUpdated,
	EventTypeUserAuthenticated,
	EventTypePasswordChanged,
}

type UserCreatedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Username string `json:"username"`
}

func NewUserCreatedEvent(userID, tenantID, username string) *UserCreatedEvent {
	now := time.Now()
	return &UserCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        ids.NewAt(now),
			Type:      EventTypeUserCreated,
			Timestamp: now,
			Data: map[string]interface{}{
				"user_id":   userID,
				"tenant_id": tenantID,
				"username":  username,
			},
		},
		UserID:   userID,
		TenantID: tenantID,
		Username: username,
	}
}

type UserUpdatedEvent struct {
	BaseEvent
	UserID   string                 `json:"user_id"`
	TenantID string                 `json:"tenant_id"`
	Changes  map[string]interface{} `json:"changes"`
}

func NewUserUpdatedEvent(userID, tenantID string, changes map[string]interface{}) *UserUpdatedEvent {
	now := time.Now()
	copied := make(map[string]interface{}, len(changes))
	for k, v := range changes {
		copied[k] = v
	}
	return &UserUpdatedEvent{
		BaseEvent: BaseEvent{
			ID:        ids.NewAt(now),
			Type:      EventTypeUserUpdated,
			Timestamp: now,
			Data: map[string]interface{}{
				"user_id":   userID,
				"tenant_id": tenantID,
				"changes":   copied,
			},
		},
		UserID:   userID,
		TenantID: tenantID,
		Changes:  copied,
	}
}

type UserAuthenticatedEvent struct {
	BaseEvent
	UserID          string    `json:"user_id"`
	TenantID        string    `json:"tenant_id"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

func NewUserAuthenticatedEvent(userID, tenantID string, at time.Time) *UserAuthenticatedEvent {
	return &UserAuthenticatedEvent{
		BaseEvent: BaseEvent{
			ID:        ids.NewAt(at),
			Type:      EventTypeUserAuthenticated,
			Timestamp: at,
			Data: map[string]interface{}{
				"user_id":   userID,
				"tenant_id": tenantID,
				"timestamp": at.UnixMilli(),
			},
		},
		UserID:          userID,
		TenantID:        tenantID,
		AuthenticatedAt: at,
	}
}

type PasswordChangedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

func NewPasswordChangedEvent(userID, tenantID string) *PasswordChangedEvent {
	now := time.Now()
	return &PasswordChangedEvent{
		BaseEvent: BaseEvent{
			ID:        ids.NewAt(now),
			Type:      EventTypePasswordChanged,
			Timestamp: now,
			Data: map[string]interface{}{
				"user_id":   userID,
				"tenant_id": tenantID,
			},
		},
		UserID:   userID,
		TenantID: tenantID,
	}
}
