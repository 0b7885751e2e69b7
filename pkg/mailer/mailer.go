package mailer

import (
	"github.com/diagnosis/expertbook/pkg/config"
	"github.com/diagnosis/expertbook/pkg/logger"
)

// Sender delivers a single message and returns the provider message id
// when the provider exposes one.
type Sender interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
}

// New picks the sender for the configured environment: dev mode logs,
// a MailerSend key selects MailerSend, anything else falls back to SMTP.
func New(cfg config.EmailConfig) Sender {
	switch {
	case cfg.DevMode:
		logger.Info("Mailer running in dev mode")
		return NewDevMailer()
	case cfg.MailerSendKey != "":
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
