package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/alert"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// SettingsHandler exposes the alert delivery configuration. All routes are
// authenticated; the values live in the settings table with secrets
// encrypted at rest.
type SettingsHandler struct {
	repo   repositories.SettingsRepository
	logger *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(repo repositories.SettingsRepository, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		repo:   repo,
		logger: logger.Named("settings_handler"),
	}
}

// alertSettingsResponse is the JSON shape of GET /api/v1/settings/alerts.
// Secrets are write-only: the response reports whether one is set, never
// its value.
type alertSettingsResponse struct {
	Webhook alertWebhookSettings `json:"webhook"`
	SMTP    alertSMTPSettings    `json:"smtp"`
}

type alertWebhookSettings struct {
	URL       string `json:"url"`
	Enabled   bool   `json:"enabled"`
	SecretSet bool   `json:"secret_set"`
}

type alertSMTPSettings struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	From        string `json:"from"`
	To          string `json:"to"`
	TLS         bool   `json:"tls"`
	PasswordSet bool   `json:"password_set"`
}

// GetAlerts handles GET /api/v1/settings/alerts.
func (h *SettingsHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.GetMany(r.Context(), "alert.")
	if err != nil {
		h.logger.Error("failed to load alert settings", zap.Error(err))
		ErrInternal(w)
		return
	}

	idx := make(map[string]string, len(settings))
	for _, s := range settings {
		idx[s.Key] = string(s.Value)
	}

	port, _ := strconv.Atoi(idx[alert.KeySMTPPort])

	Ok(w, alertSettingsResponse{
		Webhook: alertWebhookSettings{
			URL:       idx[alert.KeyWebhookURL],
			Enabled:   idx[alert.KeyWebhookEnabled] == "true",
			SecretSet: idx[alert.KeyWebhookSecret] != "",
		},
		SMTP: alertSMTPSettings{
			Host:        idx[alert.KeySMTPHost],
			Port:        port,
			Username:    idx[alert.KeySMTPUsername],
			From:        idx[alert.KeySMTPFrom],
			To:          idx[alert.KeySMTPTo],
			TLS:         idx[alert.KeySMTPTLS] == "true",
			PasswordSet: idx[alert.KeySMTPPassword] != "",
		},
	})
}

// updateAlertSettingsRequest is the JSON body for PUT /api/v1/settings/alerts.
// All fields are optional; only non-nil values are written. Secrets are
// updated by sending a new value and cleared by sending an empty string.
type updateAlertSettingsRequest struct {
	Webhook *struct {
		URL     *string `json:"url"`
		Secret  *string `json:"secret"`
		Enabled *bool   `json:"enabled"`
	} `json:"webhook"`
	SMTP *struct {
		Host     *string `json:"host"`
		Port     *int    `json:"port"`
		Username *string `json:"username"`
		Password *string `json:"password"`
		From     *string `json:"from"`
		To       *string `json:"to"`
		TLS      *bool   `json:"tls"`
	} `json:"smtp"`
}

// UpdateAlerts handles PUT /api/v1/settings/alerts.
func (h *SettingsHandler) UpdateAlerts(w http.ResponseWriter, r *http.Request) {
	var req updateAlertSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	type kv struct {
		key   string
		value string
	}
	var updates []kv

	if req.Webhook != nil {
		if req.Webhook.URL != nil {
			updates = append(updates, kv{alert.KeyWebhookURL, *req.Webhook.URL})
		}
		if req.Webhook.Secret != nil {
			updates = append(updates, kv{alert.KeyWebhookSecret, *req.Webhook.Secret})
		}
		if req.Webhook.Enabled != nil {
			updates = append(updates, kv{alert.KeyWebhookEnabled, strconv.FormatBool(*req.Webhook.Enabled)})
		}
	}

	if req.SMTP != nil {
		if req.SMTP.Host != nil {
			updates = append(updates, kv{alert.KeySMTPHost, *req.SMTP.Host})
		}
		if req.SMTP.Port != nil {
			if *req.SMTP.Port < 1 || *req.SMTP.Port > 65535 {
				ErrBadRequest(w, "smtp port must be a valid port number")
				return
			}
			updates = append(updates, kv{alert.KeySMTPPort, strconv.Itoa(*req.SMTP.Port)})
		}
		if req.SMTP.Username != nil {
			updates = append(updates, kv{alert.KeySMTPUsername, *req.SMTP.Username})
		}
		if req.SMTP.Password != nil {
			updates = append(updates, kv{alert.KeySMTPPassword, *req.SMTP.Password})
		}
		if req.SMTP.From != nil {
			updates = append(updates, kv{alert.KeySMTPFrom, *req.SMTP.From})
		}
		if req.SMTP.To != nil {
			updates = append(updates, kv{alert.KeySMTPTo, *req.SMTP.To})
		}
		if req.SMTP.TLS != nil {
			updates = append(updates, kv{alert.KeySMTPTLS, strconv.FormatBool(*req.SMTP.TLS)})
		}
	}

	if len(updates) == 0 {
		ErrBadRequest(w, "no settings provided")
		return
	}

	for _, u := range updates {
		if err := h.repo.Set(r.Context(), u.key, db.EncryptedString(u.value)); err != nil {
			h.logger.Error("failed to save setting", zap.String("key", u.key), zap.Error(err))
			ErrInternal(w)
			return
		}
	}

	h.GetAlerts(w, r)
}
