package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"mollie_bridge_echo/internal/models"
)

// Notifier delivers a message to the customer of an order.
type Notifier interface {
	Notify(ctx context.Context, order *models.Order, subject, body string) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type EmailService struct {
	cfg SMTPConfig
}

func NewEmailService(cfg SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// Notify emails the order's customer.
func (s *EmailService) Notify(ctx context.Context, order *models.Order, subject, body string) error {
	if order.CustomerEmail == "" {
		return fmt.Errorf("order %d has no customer email", order.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SendEmail([]string{order.CustomerEmail}, subject, body)
}

func (s *EmailService) SendEmail(to []string, subject, body string) error {
	if s.cfg.Host == "" || s.cfg.Port == "" || s.cfg.User == "" || s.cfg.Password == "" {
		return fmt.Errorf("SMTP credentials not fully configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	if err := smtp.SendMail(addr, auth, s.cfg.From, to, buildMessage(s.cfg.From, to, subject, body, time.Now())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
