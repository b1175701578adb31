package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	applog "xandcastle/internal/log"
)

// ResendSender delivers restock emails through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	tmpl   *Templates
}

func NewResendSender(apiKey, from string, tmpl *Templates) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from, tmpl: tmpl}
}

func (s *ResendSender) SendRestock(ctx context.Context, msg RestockMessage) error {
	subject, body, err := s.tmpl.Restock(msg)
	if err != nil {
		return fmt.Errorf("render restock email: %w", err)
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.Email},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	applog.Info(nil, "notify.restock.sent", map[string]any{
		"product":  msg.ProductID,
		"variant":  msg.VariantTitle,
		"email_id": sent.Id,
	})
	return nil
}

// LogSender renders the email and logs it instead of sending. Used when no API key is configured.
type LogSender struct {
	tmpl *Templates
}

func NewLogSender(tmpl *Templates) *LogSender { return &LogSender{tmpl: tmpl} }

func (s *LogSender) SendRestock(_ context.Context, msg RestockMessage) error {
	subject, _, err := s.tmpl.Restock(msg)
	if err != nil {
		return fmt.Errorf("render restock email: %w", err)
	}
	applog.Info(nil, "notify.restock.dryrun", map[string]any{
		"to":      msg.Email,
		"subject": subject,
		"url":     s.tmpl.ProductURL(msg.ProductID),
	})
	return nil
}
