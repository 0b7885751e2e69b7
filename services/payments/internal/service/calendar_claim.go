package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
)

// CalendarClaimManager admits exactly one delivery to create a meeting's
// calendar event. Callers that get false must skip creation.
type CalendarClaimManager interface {
	TryClaim(ctx context.Context, meetingID string) (bool, error)
	Release(ctx context.Context, meetingID string) error
}

type calendarClaimManager struct {
	meetings repository.MeetingRepository
}

func NewCalendarClaimManager(meetings repository.MeetingRepository) CalendarClaimManager {
	return &calendarClaimManager{meetings: meetings}
}

func (m *calendarClaimManager) TryClaim(ctx context.Context, meetingID string) (bool, error) {
	claimed, err := m.meetings.TryClaimCalendar(ctx, meetingID)
	if err != nil {
		return false, fmt.Errorf("claim calendar creation: %w", err)
	}
	if !claimed {
		logger.InfoContext(ctx, "Calendar creation already claimed", "meeting_id", meetingID)
	}
	return claimed, nil
}

func (m *calendarClaimManager) Release(ctx context.Context, meetingID string) error {
	if err := m.meetings.ReleaseCalendarClaim(ctx, meetingID); err != nil {
		return fmt.Errorf("release calendar claim: %w", err)
	}
	logger.InfoContext(ctx, "Calendar creation claim released", "meeting_id", meetingID)
	return nil
}
