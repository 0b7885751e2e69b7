package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.SlotReservation) (bool, error)
	DeleteByPaymentIntent(ctx context.Context, paymentIntentID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type reservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &reservationRepository{pool: pool}
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.SlotReservation) (bool, error) {
	const q = `INSERT INTO slot_reservations (
		expert_id, event_id, payment_intent_id, start_time, end_time, voucher_reference, expires_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (payment_intent_id) DO NOTHING
	RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := database.Conn(ctx, r.pool).Query(ctx, q,
		res.ExpertID, res.EventID, res.PaymentIntentID, res.Start, res.End, res.VoucherReference, res.ExpiresAt,
	)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	created := false
	for rows.Next() {
		if err := rows.Scan(&res.ID); err != nil {
			return false, err
		}
		created = true
	}
	return created, rows.Err()
}

func (r *reservationRepository) DeleteByPaymentIntent(ctx context.Context, paymentIntentID string) (int64, error) {
	const q = `DELETE FROM slot_reservations WHERE payment_intent_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q, paymentIntentID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *reservationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM slot_reservations WHERE expires_at < now()`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
