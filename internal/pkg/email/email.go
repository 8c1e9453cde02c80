package email

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Notifier delivers plain text messages.
type Notifier interface {
	Send(recipient, subject, body string) error
}

// SMTPConfig holds configuration for SMTP server
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	UseTLS    bool
}

// SMTPNotifier sends mail through an SMTP server.
type SMTPNotifier struct {
	config SMTPConfig
	logger zerolog.Logger
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(config SMTPConfig, logger zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config: config,
		logger: logger,
	}
}

// Send sends a plain text email. Without SMTP credentials the message is only logged.
func (s *SMTPNotifier) Send(recipient, subject, body string) error {
	if s.config.Username == "" || s.config.Password == "" {
		s.logger.Warn().
			Str("to", recipient).
			Str("subject", subject).
			Str("body", body).
			Msg("SMTP credentials not configured - email not sent")
		return nil
	}

	message := buildMessage(s.config.FromEmail, recipient, subject, body)
	if err := s.deliver(recipient, message); err != nil {
		s.logger.Error().Err(err).Str("to", recipient).Msg("Failed to send email")
		return err
	}
	s.logger.Info().Str("to", recipient).Str("subject", subject).Msg("Email sent")
	return nil
}

// buildMessage renders headers and body in RFC 5322 form
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func (s *SMTPNotifier) deliver(recipient string, message []byte) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	serverAddress := s.config.Host + ":" + strconv.Itoa(s.config.Port)

	if !s.config.UseTLS {
		if err := smtp.SendMail(serverAddress, auth, s.config.FromEmail, []string{recipient}, message); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", serverAddress, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err = client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(recipient); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write email message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return nil
}

// NotifyAll sends the same message to every recipient and returns the first error.
func NotifyAll(n Notifier, recipients []string, subject, body string) error {
	var first error
	for _, r := range recipients {
		if err := n.Send(r, subject, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}
