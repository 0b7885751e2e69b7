package notify

import (
	"context"

	"github.com/diagnosis/expertbook/pkg/events"
	"github.com/diagnosis/expertbook/pkg/logger"
)

// EventNotifier hands in-app notifications to the notify service over
// the event bus.
type EventNotifier struct {
	bus events.Publisher
}

func NewEventNotifier(bus events.Publisher) *EventNotifier {
	return &EventNotifier{bus: bus}
}

func (n *EventNotifier) Notify(ctx context.Context, userID, notificationType string, payload map[string]any) {
	if userID == "" {
		logger.WarnContext(ctx, "Dropping notification without recipient", "type", notificationType)
		return
	}

	evt := events.NotificationEvent{
		Type:   notificationType,
		UserID: userID,
		Data:   payload,
	}
	if err := n.bus.Publish(ctx, events.NotifySend, evt); err != nil {
		logger.ErrorContext(ctx, "Failed to publish notification",
			"error", err,
			"type", notificationType,
			"user_id", userID,
		)
	}
}
