package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

type MeetingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Meeting, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Meeting, error)
	// UpdatePaymentStatus moves the meeting to status when its current
	// status allows it. It reports whether a row changed.
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (bool, error)
	MarkConflict(ctx context.Context, id string, status domain.PaymentStatus, conflictType domain.ConflictType, reason string) (bool, error)
	TryClaimCalendar(ctx context.Context, id string) (bool, error)
	ReleaseCalendarClaim(ctx context.Context, id string) error
	SetCalendarURL(ctx context.Context, id, url string) (bool, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]domain.ReviewItem, error)
}

type meetingRepository struct {
	pool *pgxpool.Pool
}

func NewMeetingRepository(pool *pgxpool.Pool) MeetingRepository {
	return &meetingRepository{pool: pool}
}

const meetingCols = `m.id, m.expert_id, m.guest_email, m.guest_name,
m.event_id, e.title, e.duration_minutes,
m.start_time, COALESCE(m.timezone, 'UTC'), COALESCE(m.locale, ''), COALESCE(m.notes, ''),
COALESCE(m.stripe_payment_intent_id, ''), m.payment_status,
m.calendar_url, m.calendar_creation_claimed,
m.conflict_type, m.conflict_reason, m.updated_at`

const meetingFrom = ` FROM meetings m JOIN events e ON e.id = m.event_id`

func scanMeeting(row pgx.Row) (*domain.Meeting, error) {
	var m domain.Meeting
	err := row.Scan(
		&m.ID, &m.ExpertID, &m.GuestEmail, &m.GuestName,
		&m.EventID, &m.EventTitle, &m.DurationMinutes,
		&m.StartTime, &m.Timezone, &m.Locale, &m.Notes,
		&m.PaymentIntentID, &m.PaymentStatus,
		&m.CalendarURL, &m.CalendarCreationClaimed,
		&m.ConflictType, &m.ConflictReason, &m.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepository) GetByID(ctx context.Context, id string) (*domain.Meeting, error) {
	const q = `SELECT ` + meetingCols + meetingFrom + ` WHERE m.id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanMeeting(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *meetingRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Meeting, error) {
	const q = `SELECT ` + meetingCols + meetingFrom + ` WHERE m.stripe_payment_intent_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanMeeting(database.Conn(ctx, r.pool).QueryRow(ctx, q, paymentIntentID))
}

func statusStrings(ss []domain.PaymentStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (r *meetingRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (bool, error) {
	const q = `UPDATE meetings SET payment_status = $2, updated_at = now()
	WHERE id = $1 AND payment_status = ANY($3)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, string(status), statusStrings(domain.MeetingSourcesFor(status)))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *meetingRepository) MarkConflict(ctx context.Context, id string, status domain.PaymentStatus, conflictType domain.ConflictType, reason string) (bool, error) {
	const q = `UPDATE meetings
	SET payment_status = $2, conflict_type = $3, conflict_reason = $4, updated_at = now()
	WHERE id = $1 AND payment_status = ANY($5)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, string(status), string(conflictType), reason,
		statusStrings(domain.MeetingSourcesFor(status)))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *meetingRepository) TryClaimCalendar(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE meetings SET calendar_creation_claimed = true, updated_at = now()
	WHERE id = $1 AND calendar_creation_claimed = false
	RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var claimed string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, id).Scan(&claimed)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *meetingRepository) ReleaseCalendarClaim(ctx context.Context, id string) error {
	const q = `UPDATE meetings SET calendar_creation_claimed = false, updated_at = now()
	WHERE id = $1 AND calendar_url IS NULL`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, id)
	return err
}

func (r *meetingRepository) SetCalendarURL(ctx context.Context, id, url string) (bool, error) {
	const q = `UPDATE meetings SET calendar_url = $2, updated_at = now()
	WHERE id = $1 AND calendar_url IS NULL`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, url)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *meetingRepository) ListPendingReview(ctx context.Context, limit, offset int) ([]domain.ReviewItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT id, expert_id, guest_email, COALESCE(stripe_payment_intent_id, ''),
	COALESCE(conflict_type, ''), COALESCE(conflict_reason, ''), updated_at
	FROM meetings WHERE payment_status = 'refund_pending_review'
	ORDER BY updated_at ASC LIMIT $1 OFFSET $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReviewItem, 0, limit)
	for rows.Next() {
		var it domain.ReviewItem
		if err := rows.Scan(&it.MeetingID, &it.ExpertID, &it.GuestEmail, &it.PaymentIntentID,
			&it.ConflictType, &it.ConflictReason, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
