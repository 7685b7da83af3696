package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NotificationLogger is the default item.notifications subscriber. Delivery
// to real channels happens elsewhere; this one just makes the stream visible
// in the logs.
type NotificationLogger struct {
	bus *gochannel.GoChannel
}

func NewNotificationLogger(bus *gochannel.GoChannel) *NotificationLogger {
	return &NotificationLogger{bus: bus}
}

// Run consumes until the context is cancelled or the bus closes.
func (l *NotificationLogger) Run(ctx context.Context) error {
	messages, err := l.bus.Subscribe(ctx, TopicItemNotifications)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicItemNotifications, err)
	}

	for msg := range messages {
		msg.Ack()

		var notification ItemNotification
		if err := json.Unmarshal(msg.Payload, &notification); err != nil {
			slog.Error("Failed to decode item notification", "message_id", msg.UUID, "error", err)
			continue
		}

		slog.Debug("Item notification",
			"source_id", notification.SourceID,
			"item_id", notification.ItemID,
			"title", notification.Title,
			"new", notification.New)
	}

	return nil
}
