package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/diagnosis/expertbook/pkg/events"
	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/pkg/mailer"
)

// Consumer delivers notify.send messages. Messages with a recipient are
// mailed; the rest are in-app notifications, which are only logged until
// the inbox service exists.
type Consumer struct {
	sender mailer.Sender
}

func New(sender mailer.Sender) *Consumer {
	return &Consumer{sender: sender}
}

// Subscribe joins the queue group so each message is handled by one
// replica only.
func (c *Consumer) Subscribe(sub events.Subscriber, queue string) error {
	return sub.QueueSubscribe(events.NotifySend, queue, func(msg *events.Message) {
		ctx := logger.WithValue(context.Background(), logger.EventIDKey, msg.ID)
		if err := c.Handle(ctx, msg.Data); err != nil {
			logger.ErrorContext(ctx, "Failed to deliver notification", "error", err, "subject", msg.Subject)
		}
	})
}

func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	var n events.NotificationEvent
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	if n.Recipient == "" {
		logger.InfoContext(ctx, "In-app notification",
			"type", n.Type,
			"user_id", n.UserID,
			"data", n.Data,
		)
		return nil
	}

	if n.Subject == "" || (n.HTML == "" && n.Text == "") {
		return fmt.Errorf("notification %q for %s has no content", n.Type, n.Recipient)
	}

	id, err := c.sender.Send(n.Recipient, "", n.Subject, n.Text, n.HTML)
	if err != nil {
		return fmt.Errorf("send %q email: %w", n.Type, err)
	}
	logger.InfoContext(ctx, "Notification email sent", "type", n.Type, "message_id", id)
	return nil
}
