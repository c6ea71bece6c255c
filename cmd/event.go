package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/identity-access/internal/core/events"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event bus commands",
	Long:  `Inspect identity events: list the event types and publish a sample through the audit subscriber.`,
}

var listEventsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the identity event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range events.AllIdentityEventTypes {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
	},
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a sample identity event",
	Long:      `Publish a sample event to an in-process bus with the audit subscriber attached, for checking log output.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: events.AllIdentityEventTypes,
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishSampleEvent(cmd.Context(), args[0])
	},
}

var (
	eventUserID   string
	eventTenantID string
)

func publishSampleEvent(ctx context.Context, eventType string) error {
	if !slices.Contains(events.AllIdentityEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q, expected one of: %s",
			eventType, strings.Join(events.AllIdentityEventTypes, ", "))
	}
	log := logger.LoggerWrapper()

	bus := events.NewEventBus(log)
	events.NewAuditSubscriber(log).Register(bus)
	publisher := events.NewIdentityPublisher(bus, log)

	var err error
	switch eventType {
	case events.EventTypeUserCreated:
		err = publisher.PublishUserCreated(ctx, eventUserID, eventTenantID, "sample")
	case events.EventTypeUserUpdated:
		err = publisher.PublishUserUpdated(ctx, eventUserID, eventTenantID, map[string]interface{}{"first_name": "Sample"})
	case events.EventTypeUserAuthenticated:
		err = publisher.PublishUserAuthenticated(ctx, eventUserID, eventTenantID, time.Now())
	case events.EventTypePasswordChanged:
		err = publisher.PublishPasswordChanged(ctx, eventUserID, eventTenantID)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return bus.Wait(waitCtx)
}

func init() {
	publishEventCmd.Flags().StringVar(&eventUserID, "user-id", uuid.NewString(), "user id carried by the event")
	publishEventCmd.Flags().StringVar(&eventTenantID, "tenant-id", uuid.NewString(), "tenant id carried by the event")

	eventCmd.AddCommand(listEventsCmd)
	eventCmd.AddCommand(publishEventCmd)
}
