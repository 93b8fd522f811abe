package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Mailer sends the lifecycle notices users receive by email.
type Mailer interface {
	SendAccountLockedEmail(ctx context.Context, email, name string) error
	SendFileDestroyedEmail(ctx context.Context, email, name, fileName string) error
}

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appURL    string
	appName   string
}

func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
	}
}

func (s *EmailService) SendAccountLockedEmail(ctx context.Context, email, name string) error {
	subject, body := accountLockedEmailTemplate(name, s.appName)
	return s.send(ctx, "account_locked", email, subject, body)
}

// SendFileDestroyedEmail tells the owner a self-destruct timer removed their file
func (s *EmailService) SendFileDestroyedEmail(ctx context.Context, email, name, fileName string) error {
	filesURL := fmt.Sprintf("%s/api/files", s.appURL)
	subject, body := fileDestroyedEmailTemplate(name, fileName, filesURL, s.appName)
	return s.send(ctx, "file_destroyed", email, subject, body)
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("email sent", "type", kind, "to", to)
	}
	return err
}
