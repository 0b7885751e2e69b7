package notify

import (
	"context"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/pkg/mailer"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// MailerEmailer sends email through the configured mail provider.
type MailerEmailer struct {
	sender mailer.Sender
}

func NewMailerEmailer(sender mailer.Sender) *MailerEmailer {
	return &MailerEmailer{sender: sender}
}

func (e *MailerEmailer) SendEmail(ctx context.Context, email domain.Email) domain.EmailResult {
	id, err := e.sender.Send(email.To, email.ToName, email.Subject, email.Text, email.HTML)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to send email",
			"error", err,
			"to", email.To,
			"subject", email.Subject,
		)
		return domain.EmailResult{Success: false, Error: err.Error()}
	}

	logger.InfoContext(ctx, "Email sent", "to", email.To, "subject", email.Subject, "message_id", id)
	return domain.EmailResult{Success: true, MessageID: id}
}
