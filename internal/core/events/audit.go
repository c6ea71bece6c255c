package events

import (
	"context"
	"log/slog"
)

// AuditSubscriber writes every identity event to the structured log.
type AuditSubscriber struct {
	logger *slog.Logger
}

func NewAuditSubscriber(logger *slog.Logger) *AuditSubscriber {
	return &AuditSubscriber{logger: logger}
}

func (a *AuditSubscriber) Handle(ctx context.Context, event Event) error {
	a.logger.InfoContext(ctx, "identity event",
		"type", "audit",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"occurred_at", event.OccurredAt(),
		"payload", event.Payload())
	return nil
}

func (a *AuditSubscriber) Register(bus *EventBus) {
	for _, eventType := range AllIdentityEventTypes {
		bus.Subscribe(eventType, a.Handle)
	}
}
