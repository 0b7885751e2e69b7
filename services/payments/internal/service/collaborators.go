package service

import (
	"context"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// CalendarCreator books the video meeting on the expert's calendar.
type CalendarCreator interface {
	CreateCalendarEvent(ctx context.Context, req domain.CalendarEventRequest) (*domain.CalendarEvent, error)
}

// Notifier sends in-app notifications. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType string, payload map[string]any)
}

// Emailer sends transactional email. Failures are reported in the result
// and never returned as errors.
type Emailer interface {
	SendEmail(ctx context.Context, email domain.Email) domain.EmailResult
}

// Refunder issues refunds with the payment provider.
type Refunder interface {
	CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.Refund, error)
}

// ExpertDirectory resolves payout details owned by the expert profile.
type ExpertDirectory interface {
	GetConnectAccount(ctx context.Context, expertID string) (string, error)
}
