package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

type TransferRepository interface {
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.PaymentTransfer, error)
	// CreatePending inserts a PENDING transfer unless one already exists.
	CreatePending(ctx context.Context, t *domain.PaymentTransfer) (bool, error)
	// EnsureReady upserts the transfer as READY. A row already in a
	// terminal status is left alone and false is returned.
	EnsureReady(ctx context.Context, t *domain.PaymentTransfer, reschedule bool) (bool, error)
	// Transition moves an existing transfer to status when allowed.
	Transition(ctx context.Context, paymentIntentID string, status domain.TransferStatus) (bool, error)
}

type transferRepository struct {
	pool *pgxpool.Pool
}

func NewTransferRepository(pool *pgxpool.Pool) TransferRepository {
	return &transferRepository{pool: pool}
}

const transferCols = `id, payment_intent_id, expert_connect_account_id,
amount, platform_fee, currency, session_start_time, scheduled_transfer_time,
status, created_at, updated_at`

func (r *transferRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.PaymentTransfer, error) {
	const q = `SELECT ` + transferCols + ` FROM payment_transfers WHERE payment_intent_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.PaymentTransfer
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, paymentIntentID).Scan(
		&t.ID, &t.PaymentIntentID, &t.ExpertConnectAccountID,
		&t.Amount, &t.PlatformFee, &t.Currency, &t.SessionStartTime, &t.ScheduledTransferTime,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transferRepository) CreatePending(ctx context.Context, t *domain.PaymentTransfer) (bool, error) {
	const q = `INSERT INTO payment_transfers (
		payment_intent_id, expert_connect_account_id, amount, platform_fee, currency,
		session_start_time, scheduled_transfer_time, status
	) VALUES ($1,$2,$3,$4,$5,$6,$7,'PENDING')
	ON CONFLICT (payment_intent_id) DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q,
		t.PaymentIntentID, t.ExpertConnectAccountID, t.Amount, t.PlatformFee, t.Currency,
		t.SessionStartTime, t.ScheduledTransferTime,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *transferRepository) EnsureReady(ctx context.Context, t *domain.PaymentTransfer, reschedule bool) (bool, error) {
	const q = `INSERT INTO payment_transfers (
		payment_intent_id, expert_connect_account_id, amount, platform_fee, currency,
		session_start_time, scheduled_transfer_time, status
	) VALUES ($1,$2,$3,$4,$5,$6,$7,'READY')
	ON CONFLICT (payment_intent_id) DO UPDATE SET
		status = 'READY',
		session_start_time = EXCLUDED.session_start_time,
		scheduled_transfer_time = CASE WHEN $8
			THEN EXCLUDED.scheduled_transfer_time
			ELSE payment_transfers.scheduled_transfer_time END,
		updated_at = now()
	WHERE payment_transfers.status IN ('PENDING', 'READY')
	RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		t.PaymentIntentID, t.ExpertConnectAccountID, t.Amount, t.PlatformFee, t.Currency,
		t.SessionStartTime, t.ScheduledTransferTime, reschedule,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.ID = id
	return true, nil
}

func (r *transferRepository) Transition(ctx context.Context, paymentIntentID string, status domain.TransferStatus) (bool, error) {
	const q = `UPDATE payment_transfers SET status = $2, updated_at = now()
	WHERE payment_intent_id = $1 AND status = ANY($3)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sources := domain.TransferSourcesFor(status)
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q, paymentIntentID, string(status), from)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
