package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
)

// TransferStatusFor maps a webhook event to the transfer status it drives.
func TransferStatusFor(t domain.EventType) (domain.TransferStatus, bool) {
	switch t {
	case domain.EventPaymentSucceeded:
		return domain.TransferReady, true
	case domain.EventPaymentFailed:
		return domain.TransferFailed, true
	case domain.EventChargeRefunded:
		return domain.TransferRefunded, true
	case domain.EventDisputeCreated:
		return domain.TransferDisputed, true
	default:
		return "", false
	}
}

// TransferStateMachine owns payout lifecycle changes. Terminal transfers
// are never modified; such attempts are logged no-ops.
type TransferStateMachine interface {
	CreatePending(ctx context.Context, t *domain.PaymentTransfer) (bool, error)
	EnsureReady(ctx context.Context, t *domain.PaymentTransfer, reschedule bool) (bool, error)
	Apply(ctx context.Context, paymentIntentID string, to domain.TransferStatus) (bool, error)
}

type transferStateMachine struct {
	transfers repository.TransferRepository
}

func NewTransferStateMachine(transfers repository.TransferRepository) TransferStateMachine {
	return &transferStateMachine{transfers: transfers}
}

func (m *transferStateMachine) CreatePending(ctx context.Context, t *domain.PaymentTransfer) (bool, error) {
	created, err := m.transfers.CreatePending(ctx, t)
	if err != nil {
		return false, fmt.Errorf("create pending transfer: %w", err)
	}
	if created {
		logger.InfoContext(ctx, "Pending transfer created",
			"account", t.ExpertConnectAccountID,
			"amount", t.Amount,
			"scheduled_transfer_time", t.ScheduledTransferTime,
		)
	}
	return created, nil
}

func (m *transferStateMachine) EnsureReady(ctx context.Context, t *domain.PaymentTransfer, reschedule bool) (bool, error) {
	ok, err := m.transfers.EnsureReady(ctx, t, reschedule)
	if err != nil {
		return false, fmt.Errorf("mark transfer ready: %w", err)
	}
	if !ok {
		m.logIgnored(ctx, t.PaymentIntentID, domain.TransferReady)
	}
	return ok, nil
}

func (m *transferStateMachine) Apply(ctx context.Context, paymentIntentID string, to domain.TransferStatus) (bool, error) {
	changed, err := m.transfers.Transition(ctx, paymentIntentID, to)
	if err != nil {
		return false, fmt.Errorf("transition transfer to %s: %w", to, err)
	}
	if changed {
		logger.InfoContext(ctx, "Transfer status changed", "status", to)
		return true, nil
	}
	m.logIgnored(ctx, paymentIntentID, to)
	return false, nil
}

func (m *transferStateMachine) logIgnored(ctx context.Context, paymentIntentID string, to domain.TransferStatus) {
	current, err := m.transfers.GetByPaymentIntent(ctx, paymentIntentID)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Transfer transition ignored", "to", to, "lookup_error", err)
	case current == nil:
		logger.InfoContext(ctx, "No transfer to transition", "to", to)
	default:
		logger.InfoContext(ctx, "Transfer transition ignored", "from", current.Status, "to", to)
	}
}
