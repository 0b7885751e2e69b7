package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

type DisputeRepository interface {
	// Record stores the dispute once. It reports whether this call
	// inserted the row.
	Record(ctx context.Context, dp *domain.DisputeEvent) (bool, error)
}

type disputeRepository struct {
	pool *pgxpool.Pool
}

func NewDisputeRepository(pool *pgxpool.Pool) DisputeRepository {
	return &disputeRepository{pool: pool}
}

func (r *disputeRepository) Record(ctx context.Context, dp *domain.DisputeEvent) (bool, error) {
	const q = `INSERT INTO payment_disputes (
		dispute_id, payment_intent_id, charge_id, amount, currency, reason, status
	) VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (dispute_id) DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q,
		dp.ID, dp.PaymentIntentID, dp.ChargeID, dp.Amount, dp.Currency, dp.Reason, dp.Status,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
