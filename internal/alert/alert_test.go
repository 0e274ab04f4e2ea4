package alert

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

func staticWebhookLoader(cfg *WebhookConfig, err error) func(context.Context) (*WebhookConfig, error) {
	return func(context.Context) (*WebhookConfig, error) { return cfg, err }
}

func TestWebhookSendSignsPayload(t *testing.T) {
	var (
		gotSignature string
		gotBody      []byte
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Folio-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	sender := newWebhookSender(staticWebhookLoader(&WebhookConfig{
		URL:     receiver.URL,
		Secret:  "signing-secret",
		Enabled: true,
	}, nil))

	err := sender.Send(context.Background(), "login_denied", "Security alert: login_denied",
		"somebody completed the OAuth flow", map[string]any{"event": "login_denied"})
	require.NoError(t, err)

	// The receiver must be able to verify the signature over the exact body.
	want := "sha256=" + hmacSHA256(gotBody, "signing-secret")
	assert.True(t, hmac.Equal([]byte(want), []byte(gotSignature)))

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "login_denied", payload.Type)
	assert.Equal(t, "somebody completed the OAuth flow", payload.Body)
}

func TestWebhookSendSkipsWhenDisabledOrUnconfigured(t *testing.T) {
	called := false
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer receiver.Close()

	disabled := newWebhookSender(staticWebhookLoader(&WebhookConfig{URL: receiver.URL, Enabled: false}, nil))
	assert.NoError(t, disabled.Send(context.Background(), "e", "t", "b", nil))

	unconfigured := newWebhookSender(staticWebhookLoader(nil, ErrConfigNotFound))
	assert.NoError(t, unconfigured.Send(context.Background(), "e", "t", "b", nil))

	assert.False(t, called)
}

func TestWebhookSendReportsNon2xx(t *testing.T) {
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer receiver.Close()

	sender := newWebhookSender(staticWebhookLoader(&WebhookConfig{URL: receiver.URL, Enabled: true}, nil))
	err := sender.Send(context.Background(), "e", "t", "b", nil)
	assert.ErrorIs(t, err, ErrSendFailed)
}

func openSettingsRepo(t *testing.T) repositories.SettingsRepository {
	t.Helper()
	require.NoError(t, db.InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	return repositories.NewSettingsRepository(database)
}

func TestLoadWebhookConfigFromSettings(t *testing.T) {
	repo := openSettingsRepo(t)
	ctx := context.Background()

	_, err := loadWebhookConfig(ctx, repo)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	require.NoError(t, repo.Set(ctx, KeyWebhookURL, "https://hooks.example.com/x"))
	require.NoError(t, repo.Set(ctx, KeyWebhookSecret, "shh"))
	require.NoError(t, repo.Set(ctx, KeyWebhookEnabled, "true"))

	cfg, err := loadWebhookConfig(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/x", cfg.URL)
	assert.Equal(t, "shh", cfg.Secret)
	assert.True(t, cfg.Enabled)
}

func TestLoadSMTPConfigValidation(t *testing.T) {
	repo := openSettingsRepo(t)
	ctx := context.Background()

	_, err := loadSMTPConfig(ctx, repo)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	require.NoError(t, repo.Set(ctx, KeySMTPHost, "smtp.example.com"))
	_, err = loadSMTPConfig(ctx, repo)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, repo.Set(ctx, KeySMTPPort, "587"))
	require.NoError(t, repo.Set(ctx, KeySMTPFrom, "folio@example.com"))
	require.NoError(t, repo.Set(ctx, KeySMTPTo, "admin@example.com"))
	require.NoError(t, repo.Set(ctx, KeySMTPPassword, "hunter2"))

	cfg, err := loadSMTPConfig(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.Host)
	assert.Equal(t, 587, cfg.Port)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.False(t, cfg.TLS)

	require.NoError(t, repo.Set(ctx, KeySMTPPort, "not-a-port"))
	_, err = loadSMTPConfig(ctx, repo)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// SecurityEvent must never propagate delivery failures to the caller.
func TestSecurityEventIsBestEffort(t *testing.T) {
	repo := openSettingsRepo(t)
	ctx := context.Background()

	// Point the webhook at a port nothing listens on.
	require.NoError(t, repo.Set(ctx, KeyWebhookURL, "http://127.0.0.1:1/hook"))
	require.NoError(t, repo.Set(ctx, KeyWebhookEnabled, "true"))

	svc := NewService(repo, zap.NewNop())
	assert.NotPanics(t, func() {
		svc.SecurityEvent(ctx, "login_denied", "test event")
	})
}
