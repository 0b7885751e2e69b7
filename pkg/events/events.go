package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

func toMessage(msg *nats.Msg) *Message {
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
	}
}

// Event types and subjects
const (
	// Payment reconciliation events
	PaymentCaptured         = "payment.captured"
	PaymentFailed           = "payment.failed"
	PaymentRefunded         = "payment.refunded"
	PaymentDisputed         = "payment.disputed"
	PaymentSlotReserved     = "payment.slot_reserved"
	PaymentConflictRefunded = "payment.conflict_refunded"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type PaymentCapturedEvent struct {
	MeetingID             string     `json:"meeting_id"`
	PaymentIntentID       string     `json:"payment_intent_id"`
	ExpertID              string     `json:"expert_id"`
	Amount                int64      `json:"amount"`
	Currency              string     `json:"currency"`
	ScheduledTransferTime *time.Time `json:"scheduled_transfer_time,omitempty"`
	CapturedAt            time.Time  `json:"captured_at"`
}

type PaymentFailedEvent struct {
	MeetingID       string    `json:"meeting_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ExpertID        string    `json:"expert_id"`
	Reason          string    `json:"reason"`
	FailedAt        time.Time `json:"failed_at"`
}

type PaymentRefundedEvent struct {
	MeetingID       string    `json:"meeting_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ExpertID        string    `json:"expert_id"`
	AmountRefunded  int64     `json:"amount_refunded"`
	Currency        string    `json:"currency"`
	RefundedAt      time.Time `json:"refunded_at"`
}

type PaymentDisputedEvent struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	ExpertID        string    `json:"expert_id"`
	DisputeID       string    `json:"dispute_id"`
	Reason          string    `json:"reason"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	OpenedAt        time.Time `json:"opened_at"`
}

type SlotReservedEvent struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	ExpertID        string    `json:"expert_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type ConflictRefundedEvent struct {
	MeetingID       string         `json:"meeting_id"`
	PaymentIntentID string         `json:"payment_intent_id"`
	ExpertID        string         `json:"expert_id"`
	ConflictType    string         `json:"conflict_type"`
	Reason          string         `json:"reason"`
	Details         map[string]any `json:"details,omitempty"`
	RefundID        string         `json:"refund_id,omitempty"`
	RefundIssued    bool           `json:"refund_issued"`
}

// NotificationEvent carries both in-app notifications (UserID set) and
// emails (Recipient set) to the notify service.
type NotificationEvent struct {
	Type      string                 `json:"type"`
	UserID    string                 `json:"user_id,omitempty"`
	Recipient string                 `json:"recipient,omitempty"`
	Subject   string                 `json:"subject,omitempty"`
	HTML      string                 `json:"html,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
