package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/identity-access/internal/obs"
)

// IdentityPublisher turns identity lifecycle facts into bus events. It
// satisfies the publisher ports of the identity and auth services.
type IdentityPublisher struct {
	bus    *EventBus
	logger *slog.Logger
}

func NewIdentityPublisher(bus *EventBus, logger *slog.Logger) *IdentityPublisher {
	return &IdentityPublisher{bus: bus, logger: logger}
}

func (p *IdentityPublisher) PublishUserCreated(ctx context.Context, userID, tenantID, username string) error {
	return p.publish(ctx, NewUserCreatedEvent(userID, tenantID, username))
}

func (p *IdentityPublisher) PublishUserUpdated(ctx context.Context, userID, tenantID string, changes map[string]interface{}) error {
	return p.publish(ctx, NewUserUpdatedEvent(userID, tenantID, changes))
}

func (p *IdentityPublisher) PublishUserAuthenticated(ctx context.Context, userID, tenantID string, at time.Time) error {
	return p.publish(ctx, NewUserAuthenticatedEvent(userID, tenantID, at))
}

func (p *IdentityPublisher) PublishPasswordChanged(ctx context.Context, userID, tenantID string) error {
	return p.publish(ctx, NewPasswordChangedEvent(userID, tenantID))
}

func (p *IdentityPublisher) publish(ctx context.Context, event Event) error {
	if err := p.bus.Publish(ctx, event); err != nil {
		obs.EventsFailed.WithLabelValues(event.EventType()).Inc()
		p.logger.Error("failed to publish identity event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
		return err
	}
	return nil
}
