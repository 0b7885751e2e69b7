package service

import "time"

const (
	DefaultTransferHourUTC = 4

	// Payouts wait out the no-show window after the session and the
	// chargeback window after capture, whichever ends later.
	SessionHoldback = 24 * time.Hour
	CaptureHoldback = 7 * 24 * time.Hour
)

// ScheduleTransfer returns the earliest payout time that is at least
// SessionHoldback after the appointment ends and CaptureHoldback after
// paidAt, pinned to hourUTC.
func ScheduleTransfer(start time.Time, duration time.Duration, paidAt time.Time, hourUTC int) time.Time {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = DefaultTransferHourUTC
	}

	earliest := start.Add(duration).Add(SessionHoldback)
	if byCapture := paidAt.Add(CaptureHoldback); byCapture.After(earliest) {
		earliest = byCapture
	}
	earliest = earliest.UTC()

	pinned := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), hourUTC, 0, 0, 0, time.UTC)
	if pinned.Before(earliest) {
		pinned = pinned.AddDate(0, 0, 1)
	}
	return pinned
}
