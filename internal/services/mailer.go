package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Mailer delivers password reset codes.
type Mailer interface {
	SendPasswordResetCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// LogMailer writes reset codes to the log. It is meant for development.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "log-mailer").Logger()}
}

func (m *LogMailer) SendPasswordResetCode(_ context.Context, email, code string, expiresAt time.Time) error {
	m.log.Info().
		Str("email", email).
		Str("code", code).
		Time("expires_at", expiresAt).
		Msg("password reset code")
	return nil
}

// WebhookMailer posts reset codes as JSON to a mail relay.
type WebhookMailer struct {
	url        string
	httpClient *resty.Client
}

type passwordResetMail struct {
	Template  string    `json:"template"`
	To        string    `json:"to"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewWebhookMailer(url string) *WebhookMailer {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	return &WebhookMailer{
		url: url,
		httpClient: resty.New().
			SetHeader("User-Agent", "voluntrack-mailer/1.0").
			SetTimeout(10 * time.Second),
	}
}

func (m *WebhookMailer) SendPasswordResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(passwordResetMail{
			Template:  "password_reset",
			To:        email,
			Code:      code,
			ExpiresAt: expiresAt.UTC(),
		}).
		Post(m.url)
	if err != nil {
		return fmt.Errorf("mail webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail webhook error (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}
