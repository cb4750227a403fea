// Package email sends transactional mail through the Resend API. When the
// service is disabled it logs what it would have sent and returns nil, so
// callers never need to branch on configuration.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/config"
)

const confirmationTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <h2>You're registered!</h2>
  <p>Hi {{.ParticipantName}},</p>
  <p>Your registration for <strong>{{.EventTitle}}</strong> has been received.</p>
  <p>We look forward to seeing you there.</p>
  <p style="color: #6b7280; font-size: 12px;">&copy; {{.CurrentYear}} Gatherline</p>
</body>
</html>`

// ConfirmationData holds data for rendering the registration confirmation email.
type ConfirmationData struct {
	ParticipantName string
	EventTitle      string
	CurrentYear     int
}

type Service struct {
	config       config.EmailConfig
	template     *template.Template
	resendClient *resend.Client
	logger       zerolog.Logger
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required when email is enabled")
		}
	}

	tmpl, err := template.New("confirmation").Parse(confirmationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse confirmation template: %w", err)
	}

	s := &Service{
		config:   cfg,
		template: tmpl,
		logger:   logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// SendRegistrationConfirmation emails a participant after a successful
// registration. Disabled service logs and returns nil.
func (s *Service) SendRegistrationConfirmation(ctx context.Context, to, participantName, eventTitle string) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("event", eventTitle).
			Msg("email service disabled, skipping registration confirmation")
		return nil
	}

	data := ConfirmationData{
		ParticipantName: participantName,
		EventTitle:      eventTitle,
		CurrentYear:     time.Now().Year(),
	}
	var body bytes.Buffer
	if err := s.template.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render confirmation template: %w", err)
	}

	subject := fmt.Sprintf("Registration confirmed: %s", eventTitle)
	if err := s.sendViaResend(ctx, to, subject, body.String()); err != nil {
		return fmt.Errorf("failed to send registration confirmation: %w", err)
	}

	s.logger.Info().
		Str("to", to).
		Str("event", eventTitle).
		Msg("registration confirmation sent")
	return nil
}

// validateEmailAddress checks format and rejects header injection attempts.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
