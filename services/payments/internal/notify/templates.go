package notify

import (
	"fmt"
	"html"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

func BookingConfirmedEmail(m *domain.Meeting, amount int64, currency string) domain.Email {
	when := FormatTime(m.StartTime, m.Timezone)
	paid := FormatAmount(amount, currency, m.Locale)

	link := "Your meeting link will follow in a separate email."
	if m.HasCalendarEvent() {
		link = "Join: " + *m.CalendarURL
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nYour booking for %s on %s is confirmed.\nAmount paid: %s\n%s\n",
		m.GuestName, m.EventTitle, when, paid, link,
	)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your booking for <strong>%s</strong> on %s is confirmed.</p><p>Amount paid: %s</p><p>%s</p>",
		html.EscapeString(m.GuestName), html.EscapeString(m.EventTitle), when, paid, html.EscapeString(link),
	)

	return domain.Email{
		To:      m.GuestEmail,
		ToName:  m.GuestName,
		Subject: "Booking confirmed: " + m.EventTitle,
		Text:    text,
		HTML:    body,
	}
}

func PaymentFailedEmail(m *domain.Meeting, reason string) domain.Email {
	when := FormatTime(m.StartTime, m.Timezone)
	text := fmt.Sprintf(
		"Hi %s,\n\nWe could not process the payment for %s on %s, so the booking has been cancelled.\nReason: %s\n\nYou are welcome to book again.\n",
		m.GuestName, m.EventTitle, when, reason,
	)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>We could not process the payment for <strong>%s</strong> on %s, so the booking has been cancelled.</p><p>Reason: %s</p><p>You are welcome to book again.</p>",
		html.EscapeString(m.GuestName), html.EscapeString(m.EventTitle), when, html.EscapeString(reason),
	)

	return domain.Email{
		To:      m.GuestEmail,
		ToName:  m.GuestName,
		Subject: "Payment failed: " + m.EventTitle,
		Text:    text,
		HTML:    body,
	}
}

func ConflictRefundEmail(m *domain.Meeting, reason string, amount int64, currency string, refundIssued bool) domain.Email {
	when := FormatTime(m.StartTime, m.Timezone)
	refunded := FormatAmount(amount, currency, m.Locale)

	status := fmt.Sprintf("A full refund of %s has been issued to your original payment method.", refunded)
	if !refundIssued {
		status = fmt.Sprintf("A full refund of %s is being processed by our team.", refunded)
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nUnfortunately your booking for %s on %s is no longer available.\nReason: %s\n%s\n",
		m.GuestName, m.EventTitle, when, reason, status,
	)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Unfortunately your booking for <strong>%s</strong> on %s is no longer available.</p><p>Reason: %s</p><p>%s</p>",
		html.EscapeString(m.GuestName), html.EscapeString(m.EventTitle), when, html.EscapeString(reason), status,
	)

	return domain.Email{
		To:      m.GuestEmail,
		ToName:  m.GuestName,
		Subject: "Booking cancelled and refunded: " + m.EventTitle,
		Text:    text,
		HTML:    body,
	}
}

func PaymentPendingEmail(m *domain.Meeting, v *domain.Voucher, amount int64, currency string) domain.Email {
	when := FormatTime(m.StartTime, m.Timezone)
	due := FormatAmount(amount, currency, m.Locale)
	expires := FormatTime(v.ExpiresAt, m.Timezone)
	if v.ExpiresAt.IsZero() {
		expires = "soon"
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nYour slot for %s on %s is held until %s.\nComplete the payment with:\nEntity: %s\nReference: %s\nAmount: %s\n",
		m.GuestName, m.EventTitle, when, expires, v.Entity, v.Reference, due,
	)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your slot for <strong>%s</strong> on %s is held until %s.</p><p>Complete the payment with:</p><ul><li>Entity: %s</li><li>Reference: %s</li><li>Amount: %s</li></ul>",
		html.EscapeString(m.GuestName), html.EscapeString(m.EventTitle), when, expires,
		html.EscapeString(v.Entity), html.EscapeString(v.Reference), due,
	)
	if v.HostedVoucherURL != "" {
		text += "Voucher: " + v.HostedVoucherURL + "\n"
		body += fmt.Sprintf(`<p><a href="%s">View voucher</a></p>`, html.EscapeString(v.HostedVoucherURL))
	}

	return domain.Email{
		To:      m.GuestEmail,
		ToName:  m.GuestName,
		Subject: "Payment pending: " + m.EventTitle,
		Text:    text,
		HTML:    body,
	}
}
