package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// AvailabilityRepository reads the expert calendar and payout data the
// reconciler evaluates. It never writes.
type AvailabilityRepository interface {
	ListBlockedDates(ctx context.Context, expertID string) ([]domain.BlockedDate, error)
	// ListBusyIntervals returns the expert's succeeded meetings starting in
	// [from, to), except the one paid by excludePaymentIntentID.
	ListBusyIntervals(ctx context.Context, expertID string, from, to time.Time, excludePaymentIntentID string) ([]domain.BusyInterval, error)
	GetSchedulingSettings(ctx context.Context, expertID string) (*domain.SchedulingSettings, error)
	GetEventDuration(ctx context.Context, eventID string) (float64, error)
	// GetConnectAccount returns the expert's payout account, or "" when
	// the expert has not finished onboarding.
	GetConnectAccount(ctx context.Context, expertID string) (string, error)
}

type availabilityRepository struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepository(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepository{pool: pool}
}

func (r *availabilityRepository) ListBlockedDates(ctx context.Context, expertID string) ([]domain.BlockedDate, error) {
	const q = `SELECT id, expert_id, to_char(date, 'YYYY-MM-DD'), timezone
	FROM blocked_dates WHERE expert_id = $1 ORDER BY date`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, expertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BlockedDate
	for rows.Next() {
		var b domain.BlockedDate
		if err := rows.Scan(&b.ID, &b.ExpertID, &b.Date, &b.Timezone); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *availabilityRepository) ListBusyIntervals(ctx context.Context, expertID string, from, to time.Time, excludePaymentIntentID string) ([]domain.BusyInterval, error) {
	const q = `SELECT m.id, COALESCE(m.stripe_payment_intent_id, ''), m.start_time, e.duration_minutes
	FROM meetings m JOIN events e ON e.id = m.event_id
	WHERE m.expert_id = $1
	  AND m.payment_status = 'succeeded'
	  AND m.start_time >= $2 AND m.start_time < $3
	  AND m.stripe_payment_intent_id IS DISTINCT FROM NULLIF($4, '')`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, expertID, from, to, excludePaymentIntentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BusyInterval
	for rows.Next() {
		var b domain.BusyInterval
		if err := rows.Scan(&b.MeetingID, &b.PaymentIntentID, &b.Start, &b.DurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *availabilityRepository) GetSchedulingSettings(ctx context.Context, expertID string) (*domain.SchedulingSettings, error) {
	const q = `SELECT expert_id, minimum_notice_minutes, timezone
	FROM scheduling_settings WHERE expert_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.SchedulingSettings
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, expertID).Scan(&s.ExpertID, &s.MinimumNoticeMinutes, &s.Timezone)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *availabilityRepository) GetEventDuration(ctx context.Context, eventID string) (float64, error) {
	const q = `SELECT duration_minutes FROM events WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var minutes float64
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, eventID).Scan(&minutes)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return minutes, err
}

func (r *availabilityRepository) GetConnectAccount(ctx context.Context, expertID string) (string, error) {
	const q = `SELECT COALESCE(stripe_connect_account_id, '') FROM experts WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var account string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, expertID).Scan(&account)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return account, err
}
