package service_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/service"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newDetector(s *memStore, now time.Time) service.ConflictDetector {
	return service.NewConflictDetector(s, 24*time.Hour, fixedClock(now))
}

func TestDetect_BlockedDateInBlockTimezone(t *testing.T) {
	s := newMemStore()
	s.blocked = []domain.BlockedDate{{ID: "b1", ExpertID: "e1", Date: "2025-02-15", Timezone: "America/New_York"}}

	// 2025-02-16T04:00Z is 2025-02-15 23:00 in New York.
	start := time.Date(2025, 2, 16, 4, 0, 0, 0, time.UTC)
	d := newDetector(s, start.Add(-30*24*time.Hour))

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: start, DurationMinutes: 60})
	if got.Outcome != domain.Conflict || got.Type != domain.ConflictBlockedDate {
		t.Fatalf("got %+v, want expert_blocked_date", got)
	}
}

func TestDetect_BlockedDateEndIsExclusive(t *testing.T) {
	s := newMemStore()
	s.blocked = []domain.BlockedDate{{ID: "b1", ExpertID: "e1", Date: "2025-02-16", Timezone: "America/New_York"}}

	// 23:00-00:00 New York time on the 15th does not touch the 16th.
	start := time.Date(2025, 2, 16, 4, 0, 0, 0, time.UTC)
	d := newDetector(s, start.Add(-30*24*time.Hour))

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: start, DurationMinutes: 60})
	if got.Outcome != domain.NoConflict {
		t.Fatalf("got %+v, want no conflict", got)
	}
}

func TestDetect_BlockedDateSpannedByAppointment(t *testing.T) {
	s := newMemStore()
	s.blocked = []domain.BlockedDate{{ID: "b1", ExpertID: "e1", Date: "2025-02-16", Timezone: "UTC"}}

	start := time.Date(2025, 2, 15, 20, 0, 0, 0, time.UTC)
	d := newDetector(s, start.Add(-30*24*time.Hour))

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: start, DurationMinutes: 60 * 30})
	if got.Type != domain.ConflictBlockedDate {
		t.Fatalf("got %+v, want expert_blocked_date", got)
	}
}

func TestDetect_BlockedDateWinsOverOverlap(t *testing.T) {
	s := newMemStore()
	start := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	s.blocked = []domain.BlockedDate{{ID: "b1", ExpertID: "e1", Date: "2025-05-10", Timezone: "Europe/Lisbon"}}
	s.addMeeting(domain.Meeting{
		ID: "other", ExpertID: "e1", PaymentIntentID: "pi_other", PaymentStatus: domain.PaymentSucceeded,
		StartTime: start.Add(-30 * time.Minute), DurationMinutes: 60,
	})
	d := newDetector(s, start.Add(-30*24*time.Hour))

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: start, DurationMinutes: 60, ExcludePaymentIntentID: "pi_1"})
	if got.Type != domain.ConflictBlockedDate {
		t.Fatalf("got %s, want expert_blocked_date", got.Type)
	}
}

func TestDetect_Overlap(t *testing.T) {
	start := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		otherStart time.Time
		otherPI    string
		status     domain.PaymentStatus
		want       domain.ConflictOutcome
	}{
		{"overlapping", start.Add(30 * time.Minute), "pi_other", domain.PaymentSucceeded, domain.Conflict},
		{"ends exactly at start", start.Add(-60 * time.Minute), "pi_other", domain.PaymentSucceeded, domain.NoConflict},
		{"starts exactly at end", start.Add(60 * time.Minute), "pi_other", domain.PaymentSucceeded, domain.NoConflict},
		{"pending meeting ignored", start, "pi_other", domain.PaymentPending, domain.NoConflict},
		{"own payment excluded", start, "pi_1", domain.PaymentSucceeded, domain.NoConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			s.addMeeting(domain.Meeting{
				ID: "other", ExpertID: "e1", PaymentIntentID: tt.otherPI, PaymentStatus: tt.status,
				StartTime: tt.otherStart, DurationMinutes: 60,
			})
			d := newDetector(s, start.Add(-30*24*time.Hour))

			got := d.Detect(context.Background(), service.ConflictCheck{
				ExpertID: "e1", Start: start, DurationMinutes: 60, ExcludePaymentIntentID: "pi_1",
			})
			if got.Outcome != tt.want {
				t.Fatalf("outcome = %v, want %v (%+v)", got.Outcome, tt.want, got)
			}
			if tt.want == domain.Conflict && got.Type != domain.ConflictTimeOverlap {
				t.Errorf("type = %s, want time_range_overlap", got.Type)
			}
		})
	}
}

func TestDetect_MinimumNotice(t *testing.T) {
	s := newMemStore()
	s.settings["e1"] = &domain.SchedulingSettings{ExpertID: "e1", MinimumNoticeMinutes: 1440}

	now := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	d := newDetector(s, now)

	got := d.Detect(context.Background(), service.ConflictCheck{
		ExpertID: "e1", Start: now.Add(600 * time.Minute), DurationMinutes: 60,
	})
	if got.Type != domain.ConflictMinimumNotice {
		t.Fatalf("got %+v, want minimum_notice_violation", got)
	}
	if h, _ := got.Details["minimumNoticeHours"].(float64); h != 24 {
		t.Errorf("minimumNoticeHours = %v, want 24", got.Details["minimumNoticeHours"])
	}
}

func TestDetect_MinimumNoticeDefaultsWithoutSettings(t *testing.T) {
	s := newMemStore()
	now := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	d := newDetector(s, now)

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: now.Add(23 * time.Hour), DurationMinutes: 30})
	if got.Type != domain.ConflictMinimumNotice {
		t.Fatalf("got %+v, want minimum_notice_violation", got)
	}

	got = d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: now.Add(25 * time.Hour), DurationMinutes: 30})
	if got.Outcome != domain.NoConflict {
		t.Fatalf("got %+v, want no conflict", got)
	}
}

func TestDetect_InvalidDurationSkips(t *testing.T) {
	s := newMemStore()
	now := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	d := newDetector(s, now)

	for _, minutes := range []float64{math.NaN(), math.Inf(1), -15} {
		got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: now.Add(72 * time.Hour), DurationMinutes: minutes})
		if got.Outcome != domain.Skipped {
			t.Errorf("duration %v: outcome = %v, want Skipped", minutes, got.Outcome)
		}
	}

	// unknown event: duration lookup yields zero
	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: now.Add(72 * time.Hour), EventID: "missing"})
	if got.Outcome != domain.Skipped {
		t.Errorf("missing event: outcome = %v, want Skipped", got.Outcome)
	}
}

func TestDetect_DurationFromEvent(t *testing.T) {
	s := newMemStore()
	s.events["ev1"] = 90
	start := time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)
	s.addMeeting(domain.Meeting{
		ID: "other", ExpertID: "e1", PaymentIntentID: "pi_other", PaymentStatus: domain.PaymentSucceeded,
		StartTime: start.Add(80 * time.Minute), DurationMinutes: 30,
	})
	d := newDetector(s, start.Add(-30*24*time.Hour))

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: start, EventID: "ev1"})
	if got.Type != domain.ConflictTimeOverlap {
		t.Fatalf("got %+v, want overlap using the 90 minute event duration", got)
	}
}

func TestDetect_FailsOpenOnStoreError(t *testing.T) {
	s := newMemStore()
	s.availabilityErr = errStoreDown
	s.blocked = []domain.BlockedDate{{ID: "b1", ExpertID: "e1", Date: "2025-05-10", Timezone: "UTC"}}
	now := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	d := newDetector(s, now)

	got := d.Detect(context.Background(), service.ConflictCheck{ExpertID: "e1", Start: now.Add(time.Hour), DurationMinutes: 60})
	if got.Outcome != domain.NoConflict {
		t.Fatalf("got %+v, want fail-open NoConflict", got)
	}
}
