// Package alert delivers security alerts to the site admin through external
// channels (email, webhook). The trigger is the auth flow noticing something
// the admin should hear about out of band, e.g. a stranger completing the
// OAuth dance. Channel configuration lives in the settings table so it can
// be changed through the API without a restart.
package alert

import (
	"context"
	"fmt"
	"strconv"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// Setting keys used by the alert service.
// All keys are namespaced under "alert." to avoid collisions with future
// config namespaces.
const (
	KeySMTPHost     = "alert.smtp.host"
	KeySMTPPort     = "alert.smtp.port"
	KeySMTPUsername = "alert.smtp.username"
	KeySMTPPassword = "alert.smtp.password" // stored encrypted via EncryptedString
	KeySMTPFrom     = "alert.smtp.from"
	KeySMTPTo       = "alert.smtp.to"
	KeySMTPTLS      = "alert.smtp.tls" // "true" or "false"

	KeyWebhookURL     = "alert.webhook.url"
	KeyWebhookSecret  = "alert.webhook.secret"  // HMAC secret, stored encrypted
	KeyWebhookEnabled = "alert.webhook.enabled" // "true" or "false"
)

// SMTPConfig holds the configuration needed to send alert emails via SMTP.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string // decrypted at load time by EncryptedString.Scan
	From     string
	To       string // the admin's address
	TLS      bool   // true = implicit TLS
}

// WebhookConfig holds the configuration for the outbound HTTP webhook channel.
type WebhookConfig struct {
	URL     string
	Secret  string // optional HMAC-SHA256 signing secret, decrypted at load time
	Enabled bool
}

// loadSMTPConfig reads all "alert.smtp.*" settings from the repository and
// assembles an SMTPConfig. Returns ErrConfigNotFound if no SMTP settings
// exist at all, ErrInvalidConfig if required fields are missing or malformed.
func loadSMTPConfig(ctx context.Context, repo repositories.SettingsRepository) (*SMTPConfig, error) {
	settings, err := repo.GetMany(ctx, "alert.smtp.")
	if err != nil {
		return nil, fmt.Errorf("alert: failed to load smtp settings: %w", err)
	}
	if len(settings) == 0 {
		return nil, ErrConfigNotFound
	}

	idx := settingsIndex(settings)

	host := idx[KeySMTPHost]
	if host == "" {
		return nil, fmt.Errorf("%w: alert.smtp.host is required", ErrInvalidConfig)
	}

	portStr := idx[KeySMTPPort]
	if portStr == "" {
		return nil, fmt.Errorf("%w: alert.smtp.port is required", ErrInvalidConfig)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: alert.smtp.port must be a valid port number", ErrInvalidConfig)
	}

	from := idx[KeySMTPFrom]
	if from == "" {
		return nil, fmt.Errorf("%w: alert.smtp.from is required", ErrInvalidConfig)
	}

	to := idx[KeySMTPTo]
	if to == "" {
		return nil, fmt.Errorf("%w: alert.smtp.to is required", ErrInvalidConfig)
	}

	return &SMTPConfig{
		Host:     host,
		Port:     port,
		Username: idx[KeySMTPUsername],
		Password: idx[KeySMTPPassword],
		From:     from,
		To:       to,
		TLS:      idx[KeySMTPTLS] == "true",
	}, nil
}

// loadWebhookConfig reads all "alert.webhook.*" settings from the repository.
// Returns ErrConfigNotFound if no webhook settings exist.
func loadWebhookConfig(ctx context.Context, repo repositories.SettingsRepository) (*WebhookConfig, error) {
	settings, err := repo.GetMany(ctx, "alert.webhook.")
	if err != nil {
		return nil, fmt.Errorf("alert: failed to load webhook settings: %w", err)
	}
	if len(settings) == 0 {
		return nil, ErrConfigNotFound
	}

	idx := settingsIndex(settings)

	url := idx[KeyWebhookURL]
	if url == "" {
		return nil, fmt.Errorf("%w: alert.webhook.url is required", ErrInvalidConfig)
	}

	return &WebhookConfig{
		URL:     url,
		Secret:  idx[KeyWebhookSecret],
		Enabled: idx[KeyWebhookEnabled] == "true",
	}, nil
}

// settingsIndex converts a slice of Setting into a map[key]value string for
// convenient O(1) lookup. Decryption has already occurred when GORM scanned
// the rows.
func settingsIndex(settings []db.Setting) map[string]string {
	idx := make(map[string]string, len(settings))
	for _, s := range settings {
		idx[s.Key] = string(s.Value)
	}
	return idx
}
