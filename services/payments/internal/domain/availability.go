package domain

import "time"

const DefaultMinimumNoticeMinutes = 1440

// BlockedDate is a whole day the expert declared unavailable, interpreted
// in the timezone recorded with the block.
type BlockedDate struct {
	ID       string
	ExpertID string
	Date     string // YYYY-MM-DD
	Timezone string
}

type SchedulingSettings struct {
	ExpertID             string
	MinimumNoticeMinutes int
	Timezone             string
}

// BusyInterval is another confirmed meeting of the same expert.
type BusyInterval struct {
	MeetingID       string
	PaymentIntentID string
	Start           time.Time
	DurationMinutes float64
}

// SlotReservation holds a slot while a deferred payment voucher is open.
type SlotReservation struct {
	ID               string
	ExpertID         string
	EventID          string
	PaymentIntentID  string
	Start            time.Time
	End              time.Time
	VoucherReference string
	ExpiresAt        time.Time
}
