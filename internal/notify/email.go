package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"clinic-booking-server/internal/config"
)

// NewEmailSender returns an SMTP sender when cfg is complete, otherwise a
// sender that only logs.
func NewEmailSender(cfg config.SMTPConfig, log zerolog.Logger) EmailSender {
	if !cfg.Enabled() {
		log.Info().Msg("SMTP not configured, emails will be logged only")
		return NewLogSender(log)
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender sends HTML mail through an SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, buildMessage(s.cfg.From, to, subject, htmlBody)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + headerSafe.Replace(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// LogSender stands in for email when no transport is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.log.Debug().Str("to", to).Str("subject", subject).Msg("email (not sent, no transport)")
	return nil
}

var headerSafe = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
