package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/pkg/events"
	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/pkg/tracing"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/notify"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
)

// Reconciler applies verified payment provider events to bookings and
// payouts. Every handler tolerates redelivery of the same event.
type Reconciler interface {
	Dispatch(ctx context.Context, ev *domain.WebhookEvent) error
	HandlePaymentSucceeded(ctx context.Context, ev *domain.WebhookEvent) error
	HandlePaymentFailed(ctx context.Context, ev *domain.WebhookEvent) error
	HandleRequiresAction(ctx context.Context, ev *domain.WebhookEvent) error
	HandleChargeRefunded(ctx context.Context, ev *domain.WebhookEvent) error
	HandleDisputeCreated(ctx context.Context, ev *domain.WebhookEvent) error

	ListPendingReviews(ctx context.Context, limit, offset int) ([]domain.ReviewItem, error)
	ResolveReview(ctx context.Context, meetingID, actorID string) error
}

type ReconcilerDeps struct {
	Tx           database.Transactor
	Meetings     repository.MeetingRepository
	Reservations repository.ReservationRepository
	Disputes     repository.DisputeRepository
	Experts      ExpertDirectory
	Detector     ConflictDetector
	Claims       CalendarClaimManager
	Refunds      RefundOrchestrator
	Transfers    TransferStateMachine
	Calendar     CalendarCreator
	Notifier     Notifier
	Emailer      Emailer
	Events       events.Publisher

	TransferHourUTC int
	Now             func() time.Time
}

type reconciler struct {
	tx           database.Transactor
	meetings     repository.MeetingRepository
	reservations repository.ReservationRepository
	disputes     repository.DisputeRepository
	experts      ExpertDirectory
	detector     ConflictDetector
	claims       CalendarClaimManager
	refunds      RefundOrchestrator
	transfers    TransferStateMachine
	calendar     CalendarCreator
	notifier     Notifier
	emailer      Emailer
	events       events.Publisher

	transferHour int
	now          func() time.Time
}

func NewReconciler(d ReconcilerDeps) Reconciler {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &reconciler{
		tx:           d.Tx,
		meetings:     d.Meetings,
		reservations: d.Reservations,
		disputes:     d.Disputes,
		experts:      d.Experts,
		detector:     d.Detector,
		claims:       d.Claims,
		refunds:      d.Refunds,
		transfers:    d.Transfers,
		calendar:     d.Calendar,
		notifier:     d.Notifier,
		emailer:      d.Emailer,
		events:       d.Events,
		transferHour: d.TransferHourUTC,
		now:          now,
	}
}

func (r *reconciler) Dispatch(ctx context.Context, ev *domain.WebhookEvent) error {
	ctx = logger.WithValue(ctx, logger.EventIDKey, ev.ID)
	ctx = logger.WithValue(ctx, logger.EventTypeKey, string(ev.Type))
	if pi := ev.PaymentIntentID(); pi != "" {
		ctx = logger.WithValue(ctx, logger.PaymentIntentKey, pi)
	}

	ctx, span := otel.Tracer("payments/reconciler").Start(ctx, "reconcile "+string(ev.Type))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("webhook.event_id", ev.ID),
		attribute.String("webhook.payment_intent", ev.PaymentIntentID()),
	)...)

	if err := r.dispatch(ctx, ev); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "reconcile failed")
		return err
	}
	return nil
}

func (r *reconciler) dispatch(ctx context.Context, ev *domain.WebhookEvent) error {
	switch ev.Type {
	case domain.EventPaymentSucceeded:
		return r.HandlePaymentSucceeded(ctx, ev)
	case domain.EventPaymentFailed:
		return r.HandlePaymentFailed(ctx, ev)
	case domain.EventPaymentRequiresAction:
		return r.HandleRequiresAction(ctx, ev)
	case domain.EventChargeRefunded:
		return r.HandleChargeRefunded(ctx, ev)
	case domain.EventDisputeCreated:
		return r.HandleDisputeCreated(ctx, ev)
	default:
		logger.DebugContext(ctx, "Ignoring unhandled webhook event")
		return nil
	}
}

// loadMeeting resolves the meeting for a payment intent. A missing row is
// an error only when the intent metadata says it belongs to a booking; the
// booking transaction may not have committed yet and redelivery will
// retry.
func (r *reconciler) loadMeeting(ctx context.Context, pi *domain.PaymentIntentEvent, md domain.Metadata) (*domain.Meeting, error) {
	m, err := r.meetings.GetByPaymentIntent(ctx, pi.ID)
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	if m == nil && md.Meeting != nil {
		if m, err = r.meetings.GetByID(ctx, md.Meeting.ID); err != nil {
			return nil, fmt.Errorf("load meeting: %w", err)
		}
		if m == nil {
			return nil, fmt.Errorf("payment intent %s: %w", pi.ID, domain.ErrMeetingNotFound)
		}
	}
	if m == nil {
		logger.InfoContext(ctx, "Payment intent is not linked to a meeting, ignoring")
	}
	return m, nil
}

func (r *reconciler) HandlePaymentSucceeded(ctx context.Context, ev *domain.WebhookEvent) error {
	pi := ev.PaymentIntent
	if pi == nil {
		return domain.ErrInvalidPayload
	}

	md := domain.ParseMetadata(ctx, pi.Metadata)
	meeting, err := r.loadMeeting(ctx, pi, md)
	if err != nil || meeting == nil {
		return err
	}

	switch meeting.PaymentStatus {
	case domain.PaymentRefunded, domain.PaymentRefundPendingReview:
		logger.InfoContext(ctx, "Ignoring success for meeting already settled by refund",
			"meeting_id", meeting.ID, "status", meeting.PaymentStatus)
		return nil
	}

	paidAt := ev.Created
	if paidAt.IsZero() {
		paidAt = r.now()
	}

	var (
		scheduled  time.Time
		reschedule bool
	)
	// A redelivery for a confirmed meeting must not re-run availability
	// checks: time moving on would turn a valid booking into a notice
	// violation.
	if pi.IsDeferred() && meeting.PaymentStatus != domain.PaymentSucceeded {
		if d, err := meeting.Duration(); err != nil {
			logger.ErrorContext(ctx, "Cannot recalculate transfer schedule", "error", err, "meeting_id", meeting.ID)
		} else {
			scheduled = ScheduleTransfer(meeting.StartTime, d, paidAt, r.transferHour)
			reschedule = true
		}

		result := r.detector.Detect(ctx, ConflictCheck{
			ExpertID:               meeting.ExpertID,
			Start:                  meeting.StartTime,
			EventID:                meeting.EventID,
			DurationMinutes:        meeting.DurationMinutes,
			ExcludePaymentIntentID: pi.ID,
		})
		switch result.Outcome {
		case domain.Conflict:
			return r.handleConflict(ctx, meeting, pi, result)
		case domain.Skipped:
			scheduled, reschedule = time.Time{}, false
		}
	}

	transfer, err := r.transferFor(ctx, meeting, pi, md, paidAt)
	if err != nil {
		return err
	}
	if transfer != nil && reschedule {
		transfer.ScheduledTransferTime = scheduled
	}

	var confirmed bool
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		changed, err := r.meetings.UpdatePaymentStatus(ctx, meeting.ID, domain.PaymentSucceeded)
		if err != nil {
			return fmt.Errorf("mark meeting succeeded: %w", err)
		}
		confirmed = changed

		if transfer != nil {
			if _, err := r.transfers.EnsureReady(ctx, transfer, reschedule); err != nil {
				return err
			}
		} else if _, err := r.transfers.Apply(ctx, pi.ID, domain.TransferReady); err != nil {
			return err
		}

		if _, err := r.reservations.DeleteByPaymentIntent(ctx, pi.ID); err != nil {
			return fmt.Errorf("release slot reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}

	if !meeting.HasCalendarEvent() {
		r.ensureCalendarEvent(ctx, meeting)
	}

	if !confirmed {
		logger.InfoContext(ctx, "Payment already confirmed, skipping notifications", "meeting_id", meeting.ID)
		return nil
	}

	logger.InfoContext(ctx, "Payment confirmed", "meeting_id", meeting.ID, "deferred", pi.IsDeferred())

	r.notifier.Notify(ctx, meeting.ExpertID, domain.NotifyPaymentReceived, map[string]any{
		"meetingId":       meeting.ID,
		"guestName":       meeting.GuestName,
		"startTime":       meeting.StartTime,
		"amount":          pi.CapturedAmount(),
		"currency":        pi.Currency,
		"paymentIntentId": pi.ID,
	})
	r.emailer.SendEmail(ctx, notify.BookingConfirmedEmail(meeting, pi.CapturedAmount(), pi.Currency))

	captured := events.PaymentCapturedEvent{
		MeetingID:       meeting.ID,
		PaymentIntentID: pi.ID,
		ExpertID:        meeting.ExpertID,
		Amount:          pi.CapturedAmount(),
		Currency:        pi.Currency,
		CapturedAt:      paidAt,
	}
	if transfer != nil {
		captured.ScheduledTransferTime = &transfer.ScheduledTransferTime
	}
	r.publish(ctx, events.PaymentCaptured, captured)
	return nil
}

// transferFor builds the payout record for a confirmed payment. Intents
// without transfer metadata fall back to the expert's connect account and
// the captured amount.
func (r *reconciler) transferFor(ctx context.Context, m *domain.Meeting, pi *domain.PaymentIntentEvent, md domain.Metadata, paidAt time.Time) (*domain.PaymentTransfer, error) {
	if t := r.transferFromMetadata(ctx, m, pi, md, paidAt); t != nil {
		return t, nil
	}

	account, err := r.experts.GetConnectAccount(ctx, m.ExpertID)
	if err != nil {
		return nil, fmt.Errorf("load connect account: %w", err)
	}
	if account == "" {
		logger.WarnContext(ctx, "Expert has no connect account, payout not recorded", "expert_id", m.ExpertID)
		return nil, nil
	}

	return &domain.PaymentTransfer{
		PaymentIntentID:        pi.ID,
		ExpertConnectAccountID: account,
		Amount:                 pi.CapturedAmount(),
		Currency:               pi.Currency,
		SessionStartTime:       m.StartTime,
		ScheduledTransferTime:  r.scheduleFor(ctx, m, paidAt),
	}, nil
}

// transferFromMetadata builds the payout record when the intent carries
// both transfer and payment metadata.
func (r *reconciler) transferFromMetadata(ctx context.Context, m *domain.Meeting, pi *domain.PaymentIntentEvent, md domain.Metadata, paidAt time.Time) *domain.PaymentTransfer {
	if md.Transfer == nil || md.Payment == nil {
		return nil
	}

	t := &domain.PaymentTransfer{
		PaymentIntentID:        pi.ID,
		ExpertConnectAccountID: md.Transfer.Account,
		Amount:                 md.Payment.Expert,
		PlatformFee:            md.Payment.Fee,
		Currency:               pi.Currency,
		SessionStartTime:       m.StartTime,
	}

	if md.Transfer.Scheduled != nil {
		t.ScheduledTransferTime = md.Transfer.Scheduled.UTC()
	} else {
		t.ScheduledTransferTime = r.scheduleFor(ctx, m, paidAt)
	}
	return t
}

func (r *reconciler) scheduleFor(ctx context.Context, m *domain.Meeting, paidAt time.Time) time.Time {
	d, err := m.Duration()
	if err != nil {
		logger.WarnContext(ctx, "Transfer scheduled without session length", "meeting_id", m.ID)
		d = 0
	}
	return ScheduleTransfer(m.StartTime, d, paidAt, r.transferHour)
}

// ensureCalendarEvent creates the meeting link at most once. Errors are
// logged and the claim released so a later delivery can retry.
func (r *reconciler) ensureCalendarEvent(ctx context.Context, m *domain.Meeting) {
	claimed, err := r.claims.TryClaim(ctx, m.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Calendar claim failed", "error", err, "meeting_id", m.ID)
		return
	}
	if !claimed {
		return
	}

	evt, err := r.calendar.CreateCalendarEvent(ctx, domain.CalendarEventRequest{
		MeetingID:  m.ID,
		ExpertID:   m.ExpertID,
		GuestName:  m.GuestName,
		GuestEmail: m.GuestEmail,
		Start:      m.StartTime,
		Duration:   int(m.DurationMinutes),
		EventName:  m.EventTitle,
		Timezone:   m.Timezone,
		Notes:      m.Notes,
		Locale:     m.Locale,
	})
	if err == nil && (evt == nil || evt.ConferenceURL == "") {
		err = errors.New("calendar service returned no conference url")
	}
	if err != nil {
		logger.ErrorContext(ctx, "Calendar event creation failed", "error", err, "meeting_id", m.ID)
		if rerr := r.claims.Release(ctx, m.ID); rerr != nil {
			logger.ErrorContext(ctx, "Failed to release calendar claim", "error", rerr, "meeting_id", m.ID)
		}
		return
	}

	// The event exists now; keeping the claim prevents a duplicate even if
	// the link cannot be stored.
	set, err := r.meetings.SetCalendarURL(ctx, m.ID, evt.ConferenceURL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store calendar url",
			"error", err, "meeting_id", m.ID, "conference_url", evt.ConferenceURL)
		return
	}
	if set {
		m.CalendarURL = &evt.ConferenceURL
		logger.InfoContext(ctx, "Calendar event created", "meeting_id", m.ID)
	}
}

func (r *reconciler) handleConflict(ctx context.Context, m *domain.Meeting, pi *domain.PaymentIntentEvent, result domain.ConflictResult) error {
	logger.WarnContext(ctx, "Booking conflict after deferred payment",
		"meeting_id", m.ID,
		"conflict_type", result.Type,
		"reason", result.Reason,
	)

	amount := pi.CapturedAmount()
	refund, refundErr := r.refunds.RefundForConflict(ctx, ConflictRefund{
		PaymentIntentID: pi.ID,
		MeetingID:       m.ID,
		CapturedAmount:  amount,
		Currency:        pi.Currency,
		ConflictType:    result.Type,
		Reason:          result.Reason,
	})

	status := domain.PaymentRefunded
	if refundErr != nil {
		status = domain.PaymentRefundPendingReview
		logger.AuditContext(ctx, "conflict_refund_failed",
			"meeting_id", m.ID,
			"conflict_type", result.Type,
			"amount", amount,
			"error", refundErr,
		)
	}

	var marked bool
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		changed, err := r.meetings.MarkConflict(ctx, m.ID, status, result.Type, result.Reason)
		if err != nil {
			return fmt.Errorf("mark meeting %s: %w", status, err)
		}
		marked = changed

		if _, err := r.transfers.Apply(ctx, pi.ID, domain.TransferRefunded); err != nil {
			return err
		}
		if _, err := r.reservations.DeleteByPaymentIntent(ctx, pi.ID); err != nil {
			return fmt.Errorf("release slot reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record conflict: %w", err)
	}
	if !marked {
		return nil
	}

	payload := map[string]any{
		"meetingId":    m.ID,
		"guestName":    m.GuestName,
		"startTime":    m.StartTime,
		"conflictType": string(result.Type),
		"reason":       result.Reason,
		"details":      result.Details,
		"amount":       amount,
		"currency":     pi.Currency,
		"refundIssued": refundErr == nil,
	}
	notifyType := domain.NotifyConflictRefunded
	if refundErr != nil {
		notifyType = domain.NotifyRefundReview
	}
	r.notifier.Notify(ctx, m.ExpertID, notifyType, payload)
	r.emailer.SendEmail(ctx, notify.ConflictRefundEmail(m, result.Reason, amount, pi.Currency, refundErr == nil))

	evt := events.ConflictRefundedEvent{
		MeetingID:       m.ID,
		PaymentIntentID: pi.ID,
		ExpertID:        m.ExpertID,
		ConflictType:    string(result.Type),
		Reason:          result.Reason,
		Details:         result.Details,
		RefundIssued:    refundErr == nil,
	}
	if refund != nil {
		evt.RefundID = refund.ID
	}
	r.publish(ctx, events.PaymentConflictRefunded, evt)
	return nil
}

func (r *reconciler) HandlePaymentFailed(ctx context.Context, ev *domain.WebhookEvent) error {
	pi := ev.PaymentIntent
	if pi == nil {
		return domain.ErrInvalidPayload
	}

	md := domain.ParseMetadata(ctx, pi.Metadata)
	meeting, err := r.loadMeeting(ctx, pi, md)
	if err != nil || meeting == nil {
		return err
	}

	reason := pi.FailureMessage
	if reason == "" {
		reason = "The payment could not be completed"
	}

	var failed bool
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		changed, err := r.meetings.UpdatePaymentStatus(ctx, meeting.ID, domain.PaymentFailed)
		if err != nil {
			return fmt.Errorf("mark meeting failed: %w", err)
		}
		failed = changed

		// A failure delivered after the meeting was confirmed belongs to an
		// earlier attempt. The payout follows the meeting.
		if !changed && meeting.PaymentStatus != domain.PaymentFailed {
			logger.InfoContext(ctx, "Ignoring failure for meeting no longer pending",
				"meeting_id", meeting.ID, "status", meeting.PaymentStatus)
			return nil
		}

		if _, err := r.applyTransferFor(ctx, ev, pi.ID); err != nil {
			return err
		}
		if _, err := r.reservations.DeleteByPaymentIntent(ctx, pi.ID); err != nil {
			return fmt.Errorf("release slot reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record payment failure: %w", err)
	}

	logger.AuditContext(ctx, "payment_failed",
		"meeting_id", meeting.ID,
		"expert_id", meeting.ExpertID,
		"failure_code", pi.FailureCode,
		"reason", reason,
	)

	if !failed {
		return nil
	}

	r.notifier.Notify(ctx, meeting.ExpertID, domain.NotifyPaymentFailed, map[string]any{
		"meetingId":       meeting.ID,
		"guestName":       meeting.GuestName,
		"startTime":       meeting.StartTime,
		"reason":          reason,
		"paymentIntentId": pi.ID,
	})
	r.emailer.SendEmail(ctx, notify.PaymentFailedEmail(meeting, reason))

	r.publish(ctx, events.PaymentFailed, events.PaymentFailedEvent{
		MeetingID:       meeting.ID,
		PaymentIntentID: pi.ID,
		ExpertID:        meeting.ExpertID,
		Reason:          reason,
		FailedAt:        ev.Created,
	})
	return nil
}

func (r *reconciler) HandleRequiresAction(ctx context.Context, ev *domain.WebhookEvent) error {
	pi := ev.PaymentIntent
	if pi == nil {
		return domain.ErrInvalidPayload
	}
	if pi.Voucher == nil {
		logger.DebugContext(ctx, "Requires action without voucher, ignoring")
		return nil
	}

	md := domain.ParseMetadata(ctx, pi.Metadata)
	meeting, err := r.loadMeeting(ctx, pi, md)
	if err != nil || meeting == nil {
		return err
	}
	if meeting.PaymentStatus != domain.PaymentPending {
		logger.InfoContext(ctx, "Voucher issued for meeting no longer pending, ignoring",
			"meeting_id", meeting.ID, "status", meeting.PaymentStatus)
		return nil
	}

	duration, err := meeting.Duration()
	if err != nil {
		logger.ErrorContext(ctx, "Cannot reserve slot: invalid meeting duration", "meeting_id", meeting.ID)
		return nil
	}

	expires := pi.Voucher.ExpiresAt
	if expires.IsZero() {
		expires = r.now().Add(7 * 24 * time.Hour)
	}
	reservation := &domain.SlotReservation{
		ExpertID:         meeting.ExpertID,
		EventID:          meeting.EventID,
		PaymentIntentID:  pi.ID,
		Start:            meeting.StartTime,
		End:              meeting.StartTime.Add(duration),
		VoucherReference: pi.Voucher.Reference,
		ExpiresAt:        expires,
	}
	transfer := r.transferFromMetadata(ctx, meeting, pi, md, r.now())

	var reserved bool
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := r.reservations.Create(ctx, reservation)
		if err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}
		reserved = created

		if transfer != nil {
			if _, err := r.transfers.CreatePending(ctx, transfer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hold slot for voucher: %w", err)
	}
	if !reserved {
		logger.InfoContext(ctx, "Slot already reserved for voucher", "meeting_id", meeting.ID)
		return nil
	}

	logger.InfoContext(ctx, "Slot reserved until voucher expiry",
		"meeting_id", meeting.ID, "expires_at", expires)

	r.emailer.SendEmail(ctx, notify.PaymentPendingEmail(meeting, pi.Voucher, pi.Amount, pi.Currency))
	r.publish(ctx, events.PaymentSlotReserved, events.SlotReservedEvent{
		PaymentIntentID: pi.ID,
		ExpertID:        meeting.ExpertID,
		Start:           reservation.Start,
		End:             reservation.End,
		ExpiresAt:       expires,
	})
	return nil
}

func (r *reconciler) HandleChargeRefunded(ctx context.Context, ev *domain.WebhookEvent) error {
	ch := ev.Charge
	if ch == nil {
		return domain.ErrInvalidPayload
	}
	if ch.PaymentIntentID == "" {
		logger.InfoContext(ctx, "Refunded charge has no payment intent, ignoring", "charge_id", ch.ID)
		return nil
	}

	meeting, err := r.meetings.GetByPaymentIntent(ctx, ch.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}

	if !ch.Refunded {
		logger.InfoContext(ctx, "Partial refund recorded",
			"amount", ch.Amount, "amount_refunded", ch.AmountRefunded)
		if meeting != nil {
			r.notifier.Notify(ctx, meeting.ExpertID, domain.NotifyPartialRefund, map[string]any{
				"meetingId":      meeting.ID,
				"amountRefunded": ch.AmountRefunded,
				"currency":       ch.Currency,
			})
		}
		return nil
	}

	var changed bool
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		changed = false
		if meeting != nil {
			ok, err := r.meetings.UpdatePaymentStatus(ctx, meeting.ID, domain.PaymentRefunded)
			if err != nil {
				return fmt.Errorf("mark meeting refunded: %w", err)
			}
			changed = ok
		}
		moved, err := r.applyTransferFor(ctx, ev, ch.PaymentIntentID)
		if err != nil {
			return err
		}
		changed = changed || moved
		return nil
	})
	if err != nil {
		return fmt.Errorf("record refund: %w", err)
	}

	if meeting == nil {
		logger.InfoContext(ctx, "Refunded payment is not linked to a meeting")
		return nil
	}
	if !changed {
		return nil
	}

	r.notifier.Notify(ctx, meeting.ExpertID, domain.NotifyPaymentRefunded, map[string]any{
		"meetingId":      meeting.ID,
		"guestName":      meeting.GuestName,
		"startTime":      meeting.StartTime,
		"amountRefunded": ch.AmountRefunded,
		"currency":       ch.Currency,
	})
	r.publish(ctx, events.PaymentRefunded, events.PaymentRefundedEvent{
		MeetingID:       meeting.ID,
		PaymentIntentID: ch.PaymentIntentID,
		ExpertID:        meeting.ExpertID,
		AmountRefunded:  ch.AmountRefunded,
		Currency:        ch.Currency,
		RefundedAt:      ev.Created,
	})
	return nil
}

// HandleDisputeCreated freezes the payout. The meeting's payment status is
// left as is; a dispute sits on top of it.
func (r *reconciler) HandleDisputeCreated(ctx context.Context, ev *domain.WebhookEvent) error {
	dp := ev.Dispute
	if dp == nil {
		return domain.ErrInvalidPayload
	}
	if dp.PaymentIntentID == "" {
		logger.WarnContext(ctx, "Dispute has no payment intent, ignoring", "dispute_id", dp.ID)
		return nil
	}

	meeting, err := r.meetings.GetByPaymentIntent(ctx, dp.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}

	// The dispute row dedupes notifications. The payout may not exist for
	// intents booked without transfer metadata.
	var recorded bool
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := r.disputes.Record(ctx, dp)
		if err != nil {
			return fmt.Errorf("record dispute: %w", err)
		}
		recorded = ok

		_, err = r.applyTransferFor(ctx, ev, dp.PaymentIntentID)
		return err
	})
	if err != nil {
		return err
	}

	logger.AuditContext(ctx, "payment_disputed",
		"dispute_id", dp.ID,
		"reason", dp.Reason,
		"amount", dp.Amount,
	)

	if meeting == nil || !recorded {
		return nil
	}

	r.notifier.Notify(ctx, meeting.ExpertID, domain.NotifyPaymentDisputed, map[string]any{
		"meetingId": meeting.ID,
		"disputeId": dp.ID,
		"reason":    dp.Reason,
		"amount":    dp.Amount,
		"currency":  dp.Currency,
	})
	r.publish(ctx, events.PaymentDisputed, events.PaymentDisputedEvent{
		PaymentIntentID: dp.PaymentIntentID,
		ExpertID:        meeting.ExpertID,
		DisputeID:       dp.ID,
		Reason:          dp.Reason,
		Amount:          dp.Amount,
		Currency:        dp.Currency,
		OpenedAt:        ev.Created,
	})
	return nil
}

func (r *reconciler) ListPendingReviews(ctx context.Context, limit, offset int) ([]domain.ReviewItem, error) {
	items, err := r.meetings.ListPendingReview(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	return items, nil
}

// ResolveReview records that an operator refunded the guest by hand.
func (r *reconciler) ResolveReview(ctx context.Context, meetingID, actorID string) error {
	meeting, err := r.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}
	if meeting == nil {
		return domain.ErrMeetingNotFound
	}
	if meeting.PaymentStatus != domain.PaymentRefundPendingReview {
		return domain.ErrReviewNotPending
	}

	if _, err := r.meetings.UpdatePaymentStatus(ctx, meetingID, domain.PaymentRefunded); err != nil {
		return fmt.Errorf("resolve review: %w", err)
	}

	logger.AuditContext(ctx, "refund_review_resolved",
		"meeting_id", meetingID,
		"actor_id", actorID,
		"payment_intent_id", meeting.PaymentIntentID,
	)
	r.notifier.Notify(ctx, meeting.ExpertID, domain.NotifyPaymentRefunded, map[string]any{
		"meetingId": meeting.ID,
		"manual":    true,
	})
	return nil
}

// applyTransferFor moves the payout to the status the event type drives.
func (r *reconciler) applyTransferFor(ctx context.Context, ev *domain.WebhookEvent, paymentIntentID string) (bool, error) {
	to, ok := TransferStatusFor(ev.Type)
	if !ok {
		return false, nil
	}
	return r.transfers.Apply(ctx, paymentIntentID, to)
}

func (r *reconciler) publish(ctx context.Context, subject string, payload any) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
