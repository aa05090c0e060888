package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender sends emails via the Resend API. Used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// VerificationEmail formats the OTP message for a given purpose.
func VerificationEmail(code string, ttlMinutes int) (subject, body string) {
	subject = "Your verification code"
	body = fmt.Sprintf(
		`<p>Your verification code is:</p><h2>%s</h2><p>It expires in %d minutes.</p>`,
		code, ttlMinutes,
	)
	return subject, body
}

// PasswordResetEmail formats the password-reset OTP message.
func PasswordResetEmail(code string, ttlMinutes int) (subject, body string) {
	subject = "Your password reset code"
	body = fmt.Sprintf(
		`<p>Use this code to reset your password:</p><h2>%s</h2><p>It expires in %d minutes. If you did not request a reset, ignore this email.</p>`,
		code, ttlMinutes,
	)
	return subject, body
}
