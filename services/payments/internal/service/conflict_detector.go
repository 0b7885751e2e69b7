package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
)

const dateLayout = "2006-01-02"

// busyLookback bounds how far before the candidate start another meeting
// may begin and still be loaded for the overlap check.
const busyLookback = 24 * time.Hour

type ConflictCheck struct {
	ExpertID string
	Start    time.Time
	EventID  string
	// DurationMinutes overrides the event's duration when positive.
	DurationMinutes        float64
	ExcludePaymentIntentID string
}

type ConflictDetector interface {
	Detect(ctx context.Context, check ConflictCheck) domain.ConflictResult
}

type conflictDetector struct {
	availability  repository.AvailabilityRepository
	defaultNotice time.Duration
	now           func() time.Time
}

func NewConflictDetector(availability repository.AvailabilityRepository, defaultNotice time.Duration, now func() time.Time) ConflictDetector {
	if defaultNotice <= 0 {
		defaultNotice = domain.DefaultMinimumNoticeMinutes * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &conflictDetector{
		availability:  availability,
		defaultNotice: defaultNotice,
		now:           now,
	}
}

func (d *conflictDetector) Detect(ctx context.Context, check ConflictCheck) domain.ConflictResult {
	minutes := check.DurationMinutes
	if minutes == 0 {
		m, err := d.availability.GetEventDuration(ctx, check.EventID)
		if err != nil {
			logger.ErrorContext(ctx, "Conflict check failed open: could not load event duration",
				"error", err, "event_id", check.EventID)
			return domain.ConflictResult{Outcome: domain.NoConflict}
		}
		minutes = m
	}

	duration, err := domain.MinutesToDuration(minutes)
	if err != nil {
		logger.ErrorContext(ctx, "Skipping conflict evaluation: appointment duration is invalid",
			"expert_id", check.ExpertID,
			"event_id", check.EventID,
			"duration_minutes", minutes,
		)
		return domain.ConflictResult{Outcome: domain.Skipped}
	}

	start := check.Start
	end := start.Add(duration)

	var (
		blocked  []domain.BlockedDate
		busy     []domain.BusyInterval
		settings *domain.SchedulingSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocked, err = d.availability.ListBlockedDates(gctx, check.ExpertID)
		return err
	})
	g.Go(func() error {
		var err error
		busy, err = d.availability.ListBusyIntervals(gctx, check.ExpertID, start.Add(-busyLookback), end, check.ExcludePaymentIntentID)
		return err
	})
	g.Go(func() error {
		var err error
		settings, err = d.availability.GetSchedulingSettings(gctx, check.ExpertID)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "Conflict check failed open: could not load availability",
			"error", err, "expert_id", check.ExpertID)
		return domain.ConflictResult{Outcome: domain.NoConflict}
	}

	if r, ok := blockedDateConflict(ctx, blocked, start, end); ok {
		return r
	}
	if r, ok := overlapConflict(ctx, busy, start, end); ok {
		return r
	}
	if r, ok := d.noticeConflict(settings, start); ok {
		return r
	}
	return domain.ConflictResult{Outcome: domain.NoConflict}
}

// blockedDateConflict compares calendar dates in each block's own
// timezone. The end is exclusive, so a meeting ending at midnight does not
// touch the following day.
func blockedDateConflict(ctx context.Context, blocked []domain.BlockedDate, start, end time.Time) (domain.ConflictResult, bool) {
	for _, b := range blocked {
		loc, err := time.LoadLocation(b.Timezone)
		if err != nil {
			logger.WarnContext(ctx, "Blocked date has unknown timezone, using UTC",
				"blocked_date_id", b.ID, "timezone", b.Timezone)
			loc = time.UTC
		}

		startDate := start.In(loc).Format(dateLayout)
		endDate := end.Add(-time.Nanosecond).In(loc).Format(dateLayout)
		if b.Date < startDate || b.Date > endDate {
			continue
		}

		return domain.ConflictResult{
			Outcome: domain.Conflict,
			Type:    domain.ConflictBlockedDate,
			Reason:  fmt.Sprintf("Expert is unavailable on %s", b.Date),
			Details: map[string]any{
				"blockedDate":      b.Date,
				"timezone":         b.Timezone,
				"appointmentStart": start.UTC().Format(time.RFC3339),
				"appointmentEnd":   end.UTC().Format(time.RFC3339),
			},
		}, true
	}
	return domain.ConflictResult{}, false
}

func overlapConflict(ctx context.Context, busy []domain.BusyInterval, start, end time.Time) (domain.ConflictResult, bool) {
	for _, b := range busy {
		d, err := domain.MinutesToDuration(b.DurationMinutes)
		if err != nil {
			logger.WarnContext(ctx, "Ignoring meeting with invalid duration in overlap check",
				"meeting_id", b.MeetingID, "duration_minutes", b.DurationMinutes)
			continue
		}
		bEnd := b.Start.Add(d)
		if start.Before(bEnd) && b.Start.Before(end) {
			return domain.ConflictResult{
				Outcome: domain.Conflict,
				Type:    domain.ConflictTimeOverlap,
				Reason:  "Time slot overlaps with another confirmed meeting",
				Details: map[string]any{
					"conflictingMeetingId": b.MeetingID,
					"conflictingStart":     b.Start.UTC().Format(time.RFC3339),
					"conflictingEnd":       bEnd.UTC().Format(time.RFC3339),
				},
			}, true
		}
	}
	return domain.ConflictResult{}, false
}

func (d *conflictDetector) noticeConflict(settings *domain.SchedulingSettings, start time.Time) (domain.ConflictResult, bool) {
	notice := d.defaultNotice
	if settings != nil && settings.MinimumNoticeMinutes > 0 {
		notice = time.Duration(settings.MinimumNoticeMinutes) * time.Minute
	}

	until := start.Sub(d.now())
	if until >= notice {
		return domain.ConflictResult{}, false
	}

	hours := notice.Hours()
	return domain.ConflictResult{
		Outcome: domain.Conflict,
		Type:    domain.ConflictMinimumNotice,
		Reason:  fmt.Sprintf("Booking requires at least %g hours notice", hours),
		Details: map[string]any{
			"minimumNoticeHours": hours,
			"hoursUntilStart":    until.Hours(),
		},
	}, true
}
