package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

type RefundRecordRepository interface {
	Record(ctx context.Context, rec *domain.RefundRecord) error
}

type refundRecordRepository struct {
	pool *pgxpool.Pool
}

func NewRefundRecordRepository(pool *pgxpool.Pool) RefundRecordRepository {
	return &refundRecordRepository{pool: pool}
}

// Record keeps one row per payment intent and conflict type; a later
// attempt overwrites an earlier failure but never an issued refund.
func (r *refundRecordRepository) Record(ctx context.Context, rec *domain.RefundRecord) error {
	const q = `INSERT INTO conflict_refunds (
		payment_intent_id, meeting_id, refund_id, amount, currency,
		conflict_type, reason, status, error
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (payment_intent_id, conflict_type) DO UPDATE SET
		refund_id = EXCLUDED.refund_id,
		status = EXCLUDED.status,
		error = EXCLUDED.error,
		created_at = now()
	WHERE conflict_refunds.status <> 'issued'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := database.Conn(ctx, r.pool).Exec(ctx, q,
		rec.PaymentIntentID, rec.MeetingID, rec.RefundID, rec.Amount, rec.Currency,
		string(rec.ConflictType), rec.Reason, string(rec.Status), rec.Error,
	)
	return err
}
