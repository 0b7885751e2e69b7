package provider

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// StripeRefunder issues refunds through an injected Stripe client.
type StripeRefunder struct {
	api *client.API
}

func NewStripeRefunder(api *client.API) *StripeRefunder {
	return &StripeRefunder{api: api}
}

func (r *StripeRefunder) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.Amount),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	re, err := r.api.Refunds.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			return nil, fmt.Errorf("stripe refund %s (%s): %w", stripeErr.Code, stripeErr.RequestID, err)
		}
		return nil, fmt.Errorf("stripe refund: %w", err)
	}

	return &domain.Refund{
		ID:              re.ID,
		PaymentIntentID: req.PaymentIntentID,
		Amount:          re.Amount,
		Currency:        string(re.Currency),
		Status:          string(re.Status),
	}, nil
}
