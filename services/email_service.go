package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dosada05/roster-system/config"
)

//go:embed templates/*.html
var emailTemplates embed.FS

var notificationTemplate = template.Must(template.ParseFS(emailTemplates, "templates/notification.html"))

var ErrEmailNotConfigured = errors.New("smtp is not configured")

type EmailService struct {
	cfg    *config.Config
	logger *slog.Logger
	dialer *net.Dialer
}

func NewEmailService(cfg *config.Config, logger *slog.Logger) *EmailService {
	return &EmailService{cfg: cfg, logger: logger, dialer: &net.Dialer{Timeout: 15 * time.Second}}
}

func (s *EmailService) configured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SMTPFrom != ""
}

// Send renders msg for every recipient and mails it. Delivery continues past a
// failed recipient; the joined errors are returned.
func (s *EmailService) Send(ctx context.Context, msg Message, recipients []Recipient) error {
	if !s.configured() {
		return ErrEmailNotConfigured
	}
	var errs []error
	for _, r := range recipients {
		body, err := RenderMessage(msg, r)
		if err != nil {
			return err
		}
		if err := s.SendEmail(ctx, r.Email, msg.Subject, body); err != nil {
			s.logger.WarnContext(ctx, "Failed to send email", slog.String("to", r.Email), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("ошибка отправки письма %s: %w", r.Email, err))
		}
	}
	return errors.Join(errs...)
}

// RenderMessage produces the HTML body for one recipient.
func RenderMessage(msg Message, r Recipient) (string, error) {
	data := struct {
		Recipient Recipient
		Message   Message
		Link      string
	}{Recipient: r, Message: msg, Link: msg.Link}

	var body bytes.Buffer
	if err := notificationTemplate.Execute(&body, data); err != nil {
		return "", fmt.Errorf("ошибка выполнения шаблона уведомления: %w", err)
	}
	return body.String(), nil
}

func (s *EmailService) buildMessage(to, subject, body string) []byte {
	return []byte("To: " + to + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		body + "\r\n")
}

func (s *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient address %q", to)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	tlsconfig := &tls.Config{ServerName: s.cfg.SMTPHost}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		// Прямое TLS-соединение (обычно порт 465)
		tlsDialer := &tls.Dialer{NetDialer: s.dialer, Config: tlsconfig}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("ошибка TLS соединения: %w", err)
		}
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
	} else {
		// STARTTLS (обычно порт 587)
		conn, err := s.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("ошибка соединения SMTP: %w", err)
		}
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
		if err = client.StartTLS(tlsconfig); err != nil {
			_ = client.Close()
			return fmt.Errorf("ошибка команды STARTTLS: %w", err)
		}
	}
	defer client.Quit()

	if s.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
		}
	}

	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("ошибка RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}
	if _, err = w.Write(s.buildMessage(to, subject, body)); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}
	return nil
}
