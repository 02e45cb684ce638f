// Package mailer delivers transactional mail. When SMTP is not configured
// the log sender writes messages to the application log instead, which keeps
// local development working without a mail relay.
package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/Gogul11/oriyam/internal/config"
	"github.com/Gogul11/oriyam/pkg/logger"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers mail through a configured relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates a sender for the given relay configuration.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := []byte("From: " + s.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *logger.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender creates a log-backed sender.
func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.NewDefault("mailer")
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(to, subject, body string) error {
	s.log.WithField("to", to).WithField("subject", subject).Info(body)
	return nil
}
