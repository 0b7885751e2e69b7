package domain

import (
	"math"
	"time"
)

type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "pending"
	PaymentSucceeded           PaymentStatus = "succeeded"
	PaymentFailed              PaymentStatus = "failed"
	PaymentRefunded            PaymentStatus = "refunded"
	PaymentRefundPendingReview PaymentStatus = "refund_pending_review"
)

// MeetingSourcesFor lists the statuses a meeting may move from to reach
// target. Refunded is final: nothing leaves it.
func MeetingSourcesFor(target PaymentStatus) []PaymentStatus {
	switch target {
	case PaymentSucceeded:
		return []PaymentStatus{PaymentPending, PaymentFailed}
	case PaymentFailed:
		return []PaymentStatus{PaymentPending}
	case PaymentRefundPendingReview:
		return []PaymentStatus{PaymentPending, PaymentFailed, PaymentSucceeded}
	case PaymentRefunded:
		return []PaymentStatus{PaymentPending, PaymentFailed, PaymentSucceeded, PaymentRefundPendingReview}
	default:
		return nil
	}
}

// Meeting is a booked appointment joined with its bookable event.
type Meeting struct {
	ID                      string        `json:"id"`
	ExpertID                string        `json:"expert_id"`
	GuestEmail              string        `json:"guest_email"`
	GuestName               string        `json:"guest_name"`
	EventID                 string        `json:"event_id"`
	EventTitle              string        `json:"event_title"`
	DurationMinutes         float64       `json:"duration_minutes"`
	StartTime               time.Time     `json:"start_time"`
	Timezone                string        `json:"timezone"`
	Locale                  string        `json:"locale"`
	Notes                   string        `json:"notes"`
	PaymentIntentID         string        `json:"payment_intent_id"`
	PaymentStatus           PaymentStatus `json:"payment_status"`
	CalendarURL             *string       `json:"calendar_url,omitempty"`
	CalendarCreationClaimed bool          `json:"calendar_creation_claimed"`
	ConflictType            *string       `json:"conflict_type,omitempty"`
	ConflictReason          *string       `json:"conflict_reason,omitempty"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// Duration returns the appointment length, or ErrInvalidDuration when the
// stored minutes are not a finite positive number.
func (m *Meeting) Duration() (time.Duration, error) {
	return MinutesToDuration(m.DurationMinutes)
}

func (m *Meeting) HasCalendarEvent() bool {
	return m.CalendarURL != nil && *m.CalendarURL != ""
}

func MinutesToDuration(minutes float64) (time.Duration, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return 0, ErrInvalidDuration
	}
	return time.Duration(minutes * float64(time.Minute)), nil
}

// ReviewItem is a meeting whose conflict refund could not be confirmed
// with the provider.
type ReviewItem struct {
	MeetingID       string    `json:"meeting_id"`
	ExpertID        string    `json:"expert_id"`
	GuestEmail      string    `json:"guest_email"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ConflictType    string    `json:"conflict_type"`
	ConflictReason  string    `json:"conflict_reason"`
	UpdatedAt       time.Time `json:"updated_at"`
}
