package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/repositories"
)

// Service fans a security event out to the configured delivery channels.
// Delivery is best-effort: failures are logged, never propagated, so a dead
// SMTP server can not break the login flow that raised the alert.
type Service struct {
	email   *emailSender
	webhook *webhookSender
	logger  *zap.Logger
}

// NewService creates an alert Service. The email and webhook senders reload
// their configuration from settingsRepo on every send, so settings changes
// take effect without a restart.
func NewService(settingsRepo repositories.SettingsRepository, logger *zap.Logger) *Service {
	return &Service{
		email: newEmailSender(func(ctx context.Context) (*SMTPConfig, error) {
			return loadSMTPConfig(ctx, settingsRepo)
		}),
		webhook: newWebhookSender(func(ctx context.Context) (*WebhookConfig, error) {
			return loadWebhookConfig(ctx, settingsRepo)
		}),
		logger: logger.Named("alert"),
	}
}

// SecurityEvent delivers a security alert through all configured channels.
// event is a short machine-readable kind ("login_denied"); detail is the
// human-readable description that lands in the email body and webhook text.
func (s *Service) SecurityEvent(ctx context.Context, event, detail string) {
	title := fmt.Sprintf("Security alert: %s", event)
	payload := map[string]any{
		"event":       event,
		"detail":      detail,
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.email.Send(ctx, title, detail); err != nil {
		s.logger.Warn("email alert delivery failed",
			zap.String("event", event),
			zap.Error(err),
		)
	}

	if err := s.webhook.Send(ctx, event, title, detail, payload); err != nil {
		s.logger.Warn("webhook alert delivery failed",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
