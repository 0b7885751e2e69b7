package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// StripeWebhookVerifier authenticates Stripe webhook deliveries and
// converts them into provider-neutral events.
type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

func (v *StripeWebhookVerifier) Parse(payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrInvalidSignature)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return DecodeEvent(evt)
}

// DecodeEvent maps a Stripe event onto the events the reconciler handles.
// Unhandled types come back with only ID, type and creation time set.
func DecodeEvent(evt stripe.Event) (*domain.WebhookEvent, error) {
	out := &domain.WebhookEvent{
		ID:      evt.ID,
		Type:    domain.EventType(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
	}
	if !out.Type.Handled() {
		return out, nil
	}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data", domain.ErrInvalidPayload, evt.ID)
	}

	var err error
	switch out.Type {
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed, domain.EventPaymentRequiresAction:
		out.PaymentIntent, err = decodePaymentIntent(evt.Data.Raw)
	case domain.EventChargeRefunded:
		out.Charge, err = decodeCharge(evt.Data.Raw)
	case domain.EventDisputeCreated:
		out.Dispute, err = decodeDispute(evt.Data.Raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidPayload, evt.Type, err)
	}
	return out, nil
}

// multibancoNextAction is decoded separately from stripe.PaymentIntent so
// voucher details do not depend on the SDK's API version.
type multibancoNextAction struct {
	NextAction *struct {
		Type                     string `json:"type"`
		MultibancoDisplayDetails *struct {
			Entity           string `json:"entity"`
			Reference        string `json:"reference"`
			ExpiresAt        int64  `json:"expires_at"`
			HostedVoucherURL string `json:"hosted_voucher_url"`
		} `json:"multibanco_display_details"`
	} `json:"next_action"`
}

func decodePaymentIntent(raw json.RawMessage) (*domain.PaymentIntentEvent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, err
	}
	if pi.ID == "" {
		return nil, fmt.Errorf("payment intent without id")
	}

	out := &domain.PaymentIntentEvent{
		ID:                 pi.ID,
		Amount:             pi.Amount,
		AmountReceived:     pi.AmountReceived,
		Currency:           string(pi.Currency),
		Status:             string(pi.Status),
		PaymentMethodTypes: pi.PaymentMethodTypes,
		Metadata:           pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		out.FailureCode = string(pi.LastPaymentError.Code)
		out.FailureMessage = pi.LastPaymentError.Msg
	}

	var na multibancoNextAction
	if err := json.Unmarshal(raw, &na); err != nil {
		return nil, err
	}
	if na.NextAction != nil && na.NextAction.MultibancoDisplayDetails != nil {
		d := na.NextAction.MultibancoDisplayDetails
		out.Voucher = &domain.Voucher{
			Entity:           d.Entity,
			Reference:        d.Reference,
			HostedVoucherURL: d.HostedVoucherURL,
		}
		if d.ExpiresAt > 0 {
			out.Voucher.ExpiresAt = time.Unix(d.ExpiresAt, 0).UTC()
		}
	}
	return out, nil
}

func decodeCharge(raw json.RawMessage) (*domain.ChargeEvent, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}

	out := &domain.ChargeEvent{
		ID:             ch.ID,
		Amount:         ch.Amount,
		AmountRefunded: ch.AmountRefunded,
		Currency:       string(ch.Currency),
		Refunded:       ch.Refunded,
	}
	if ch.PaymentIntent != nil {
		out.PaymentIntentID = ch.PaymentIntent.ID
	}
	return out, nil
}

func decodeDispute(raw json.RawMessage) (*domain.DisputeEvent, error) {
	var dp stripe.Dispute
	if err := json.Unmarshal(raw, &dp); err != nil {
		return nil, err
	}

	out := &domain.DisputeEvent{
		ID:       dp.ID,
		Amount:   dp.Amount,
		Currency: string(dp.Currency),
		Reason:   string(dp.Reason),
		Status:   string(dp.Status),
	}
	if dp.Charge != nil {
		out.ChargeID = dp.Charge.ID
	}
	if dp.PaymentIntent != nil {
		out.PaymentIntentID = dp.PaymentIntent.ID
	}
	return out, nil
}
