package domain

import "time"

type EventType string

const (
	EventPaymentSucceeded      EventType = "payment_intent.succeeded"
	EventPaymentFailed         EventType = "payment_intent.payment_failed"
	EventPaymentRequiresAction EventType = "payment_intent.requires_action"
	EventChargeRefunded        EventType = "charge.refunded"
	EventDisputeCreated        EventType = "charge.dispute.created"
)

func (t EventType) Handled() bool {
	switch t {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentRequiresAction,
		EventChargeRefunded, EventDisputeCreated:
		return true
	default:
		return false
	}
}

// Voucher-based methods complete capture asynchronously, often days
// after the booking was made.
var deferredMethods = map[string]bool{
	"multibanco": true,
	"boleto":     true,
	"oxxo":       true,
	"konbini":    true,
}

func IsDeferredMethod(method string) bool {
	return deferredMethods[method]
}

// WebhookEvent is a verified provider event with exactly one payload set.
type WebhookEvent struct {
	ID            string
	Type          EventType
	Created       time.Time
	PaymentIntent *PaymentIntentEvent
	Charge        *ChargeEvent
	Dispute       *DisputeEvent
}

func (e *WebhookEvent) PaymentIntentID() string {
	switch {
	case e.PaymentIntent != nil:
		return e.PaymentIntent.ID
	case e.Charge != nil:
		return e.Charge.PaymentIntentID
	case e.Dispute != nil:
		return e.Dispute.PaymentIntentID
	default:
		return ""
	}
}

type PaymentIntentEvent struct {
	ID                 string
	Amount             int64
	AmountReceived     int64
	Currency           string
	Status             string
	PaymentMethodTypes []string
	Metadata           map[string]string
	FailureCode        string
	FailureMessage     string
	Voucher            *Voucher
}

// IsDeferred reports whether the intent allowed a voucher-based method.
// The succeeded payload does not say which allowed method was used, so any
// deferred method in the list counts.
func (p *PaymentIntentEvent) IsDeferred() bool {
	if p.Voucher != nil {
		return true
	}
	for _, m := range p.PaymentMethodTypes {
		if IsDeferredMethod(m) {
			return true
		}
	}
	return false
}

// CapturedAmount is what the customer actually paid.
func (p *PaymentIntentEvent) CapturedAmount() int64 {
	if p.AmountReceived > 0 {
		return p.AmountReceived
	}
	return p.Amount
}

// Voucher is the display detail of a Multibanco-style payment reference.
type Voucher struct {
	Entity           string
	Reference        string
	ExpiresAt        time.Time
	HostedVoucherURL string
}

type ChargeEvent struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	AmountRefunded  int64
	Currency        string
	Refunded        bool
}

type DisputeEvent struct {
	ID              string
	ChargeID        string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Reason          string
	Status          string
}
