package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
)

type ConflictRefund struct {
	PaymentIntentID string
	MeetingID       string
	CapturedAmount  int64
	Currency        string
	ConflictType    domain.ConflictType
	Reason          string
}

type RefundOrchestrator interface {
	// RefundForConflict refunds the full captured amount. A returned error
	// means no refund is confirmed and the booking needs manual review.
	RefundForConflict(ctx context.Context, req ConflictRefund) (*domain.Refund, error)
}

type refundOrchestrator struct {
	refunder Refunder
	records  repository.RefundRecordRepository
}

func NewRefundOrchestrator(refunder Refunder, records repository.RefundRecordRepository) RefundOrchestrator {
	return &refundOrchestrator{refunder: refunder, records: records}
}

func ConflictRefundKey(paymentIntentID string, conflictType domain.ConflictType) string {
	return fmt.Sprintf("conflict-refund-%s-%s", paymentIntentID, conflictType)
}

func (o *refundOrchestrator) RefundForConflict(ctx context.Context, req ConflictRefund) (*domain.Refund, error) {
	if req.CapturedAmount <= 0 {
		err := fmt.Errorf("no captured amount to refund for %s", req.PaymentIntentID)
		o.record(ctx, req, nil, err)
		return nil, err
	}

	refund, err := o.refunder.CreateRefund(ctx, domain.RefundRequest{
		PaymentIntentID: req.PaymentIntentID,
		Amount:          req.CapturedAmount,
		IdempotencyKey:  ConflictRefundKey(req.PaymentIntentID, req.ConflictType),
		Metadata: map[string]string{
			"conflict_type":   string(req.ConflictType),
			"conflict_reason": req.Reason,
			"meeting_id":      req.MeetingID,
			"refund_policy":   domain.RefundPolicyVersion,
			"refund_percent":  strconv.Itoa(100),
		},
	})
	if err != nil {
		logger.ErrorContext(ctx, "Conflict refund failed",
			"error", err,
			"meeting_id", req.MeetingID,
			"conflict_type", req.ConflictType,
			"amount", req.CapturedAmount,
		)
		o.record(ctx, req, nil, err)
		return nil, fmt.Errorf("create conflict refund: %w", err)
	}

	logger.InfoContext(ctx, "Conflict refund issued",
		"refund_id", refund.ID,
		"meeting_id", req.MeetingID,
		"conflict_type", req.ConflictType,
		"amount", refund.Amount,
	)
	o.record(ctx, req, refund, nil)
	return refund, nil
}

// record writes the audit row. Its failure never changes the outcome.
func (o *refundOrchestrator) record(ctx context.Context, req ConflictRefund, refund *domain.Refund, refundErr error) {
	rec := &domain.RefundRecord{
		PaymentIntentID: req.PaymentIntentID,
		MeetingID:       req.MeetingID,
		Amount:          req.CapturedAmount,
		Currency:        req.Currency,
		ConflictType:    req.ConflictType,
		Reason:          req.Reason,
		Status:          domain.RefundIssued,
	}
	if refund != nil {
		rec.RefundID = &refund.ID
	}
	if refundErr != nil {
		msg := refundErr.Error()
		rec.Status = domain.RefundFailed
		rec.Error = &msg
	}

	if err := o.records.Record(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "Failed to record conflict refund", "error", err, "meeting_id", req.MeetingID)
	}
}
