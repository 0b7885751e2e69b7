package domain

import "time"

type CalendarEventRequest struct {
	MeetingID  string    `json:"meeting_id"`
	ExpertID   string    `json:"expert_id"`
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email"`
	Start      time.Time `json:"start"`
	Duration   int       `json:"duration_minutes"`
	EventName  string    `json:"event_name"`
	Timezone   string    `json:"timezone"`
	Notes      string    `json:"notes,omitempty"`
	Locale     string    `json:"locale,omitempty"`
}

type CalendarEvent struct {
	EventID       string `json:"event_id,omitempty"`
	ConferenceURL string `json:"conference_url"`
}

type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

type EmailResult struct {
	Success   bool
	MessageID string
	Error     string
}

// Notification types sent to experts.
const (
	NotifyPaymentReceived  = "payment_received"
	NotifyPaymentFailed    = "payment_failed"
	NotifyPaymentRefunded  = "payment_refunded"
	NotifyPartialRefund    = "payment_partially_refunded"
	NotifyPaymentDisputed  = "payment_disputed"
	NotifyConflictRefunded = "booking_conflict_refunded"
	NotifyRefundReview     = "refund_pending_review"
)
