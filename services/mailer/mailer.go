// Package mailer sends the transactional emails of the store over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("SMTP not configured")

// PurchaseAccess is sent to a newly created guest account after payment.
type PurchaseAccess struct {
	To          string
	Name        string
	CourseTitle string
	DownloadURL string
	ExpiresAt   time.Time
	// Password is the generated credential of the new account.
	Password string
	LoginURL string
}

// EmailVerification carries a registration confirmation link.
type EmailVerification struct {
	To        string
	Name      string
	VerifyURL string
}

// Mailer is the outbound email channel.
type Mailer interface {
	SendPurchaseAccess(ctx context.Context, msg PurchaseAccess) error
	SendEmailVerification(ctx context.Context, msg EmailVerification) error
}

// Config holds SMTP settings.
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// SMTPMailer handles sending emails via SMTP with STARTTLS
type SMTPMailer struct {
	config Config
}

func NewSMTPMailer(config Config) *SMTPMailer {
	if config.Port == "" {
		config.Port = "587"
	}
	return &SMTPMailer{config: config}
}

// IsConfigured checks if SMTP is properly configured
func (m *SMTPMailer) IsConfigured() bool {
	return m.config.Host != "" && m.config.Username != "" && m.config.Password != "" && m.config.FromEmail != ""
}

func (m *SMTPMailer) SendPurchaseAccess(ctx context.Context, msg PurchaseAccess) error {
	subject := fmt.Sprintf("Your access to %s", msg.CourseTitle)
	return m.send(ctx, msg.To, subject, purchaseAccessBody(msg))
}

func (m *SMTPMailer) SendEmailVerification(ctx context.Context, msg EmailVerification) error {
	return m.send(ctx, msg.To, "Confirm your email address", emailVerificationBody(msg))
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.IsConfigured() {
		log.Printf("[MAIL] SMTP not configured, dropping %q to %s", subject, to)
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var message strings.Builder
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", m.config.FromName, m.config.FromEmail)},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)

	conn, err := smtp.Dial(m.config.Host + ":" + m.config.Port)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(m.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	conn.Quit()

	log.Printf("[MAIL] %q sent to %s", subject, to)
	return nil
}
