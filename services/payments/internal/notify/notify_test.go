package notify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/expertbook/pkg/events"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/notify"
)

// ---------- Mocks ----------

type mockSender struct {
	to, subject string
	err         error
}

func (m *mockSender) Send(toEmail, toName, subject, text, html string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.to, m.subject = toEmail, subject
	return "msg_42", nil
}

type mockBus struct {
	subject string
	data    interface{}
}

func (b *mockBus) Publish(_ context.Context, subject string, data interface{}) error {
	b.subject, b.data = subject, data
	return nil
}
func (b *mockBus) Close() error { return nil }

func meeting() *domain.Meeting {
	return &domain.Meeting{
		ID:         "m1",
		ExpertID:   "e1",
		GuestEmail: "guest@example.com",
		GuestName:  "Ana <script>",
		EventTitle: "Strategy call",
		StartTime:  time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		Timezone:   "Europe/Lisbon",
	}
}

// ---------- Tests ----------

func TestFormatAmount(t *testing.T) {
	got := notify.FormatAmount(4999, "eur", "en")
	if !strings.Contains(got, "49.99") || !strings.Contains(got, "€") {
		t.Errorf("FormatAmount(4999, eur) = %q", got)
	}

	if got := notify.FormatAmount(1500, "zzz1", "en"); got != "15.00 ZZZ1" {
		t.Errorf("unknown currency = %q, want fallback", got)
	}
}

func TestFormatTime_UnknownZoneFallsBackToUTC(t *testing.T) {
	ts := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	if got := notify.FormatTime(ts, "Mars/Olympus"); !strings.Contains(got, "10:00 UTC") {
		t.Errorf("FormatTime = %q", got)
	}
	if got := notify.FormatTime(ts, "America/New_York"); !strings.Contains(got, "06:00") {
		t.Errorf("FormatTime in New York = %q", got)
	}
}

func TestTemplates_EscapeGuestInput(t *testing.T) {
	m := meeting()
	emails := []domain.Email{
		notify.BookingConfirmedEmail(m, 5000, "eur"),
		notify.PaymentFailedEmail(m, "declined"),
		notify.ConflictRefundEmail(m, "Expert is unavailable on 2025-03-10", 5000, "eur", true),
		notify.PaymentPendingEmail(m, &domain.Voucher{Entity: "12345", Reference: "999 888 777"}, 5000, "eur"),
	}
	for _, e := range emails {
		if e.To != "guest@example.com" {
			t.Errorf("%q sent to %q", e.Subject, e.To)
		}
		if strings.Contains(e.HTML, "<script>") {
			t.Errorf("%q HTML contains unescaped guest name", e.Subject)
		}
	}
}

func TestConflictRefundEmail_PendingRefundWording(t *testing.T) {
	e := notify.ConflictRefundEmail(meeting(), "overlap", 5000, "eur", false)
	if !strings.Contains(e.Text, "being processed") {
		t.Errorf("text = %q", e.Text)
	}
}

func TestMailerEmailer(t *testing.T) {
	ok := notify.NewMailerEmailer(&mockSender{}).SendEmail(context.Background(), domain.Email{To: "a@b.c", Subject: "hi"})
	if !ok.Success || ok.MessageID != "msg_42" {
		t.Errorf("result = %+v", ok)
	}

	failed := notify.NewMailerEmailer(&mockSender{err: errors.New("smtp down")}).SendEmail(context.Background(), domain.Email{To: "a@b.c"})
	if failed.Success || failed.Error == "" {
		t.Errorf("result = %+v", failed)
	}
}

func TestEventNotifier_PublishesToNotifySubject(t *testing.T) {
	bus := &mockBus{}
	notify.NewEventNotifier(bus).Notify(context.Background(), "e1", domain.NotifyPaymentReceived, map[string]any{"meetingId": "m1"})

	if bus.subject != events.NotifySend {
		t.Fatalf("subject = %q", bus.subject)
	}
	evt, ok := bus.data.(events.NotificationEvent)
	if !ok || evt.UserID != "e1" || evt.Type != domain.NotifyPaymentReceived {
		t.Errorf("published %#v", bus.data)
	}

	bus.subject = ""
	notify.NewEventNotifier(bus).Notify(context.Background(), "", domain.NotifyPaymentReceived, nil)
	if bus.subject != "" {
		t.Error("notification without recipient must be dropped")
	}
}
