package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

const testAdminID int64 = 583231

// fakeGitHub stands in for GitHub's token and userinfo endpoints. The
// identity it reports is mutable so one server can play both the admin and
// a stranger.
type fakeGitHub struct {
	server *httptest.Server

	mu       sync.Mutex
	identity Identity
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()

	f := &fakeGitHub{identity: Identity{ID: testAdminID, Login: "octocat"}}

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.Form.Get("code") == "throttled-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited"})
			return
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_test",
			"token_type":   "bearer",
			"scope":        "read:user",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		identity := f.identity
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(identity)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) setIdentity(identity Identity) {
	f.mu.Lock()
	f.identity = identity
	f.mu.Unlock()
}

func (f *fakeGitHub) provider() *GitHubProvider {
	return NewGitHubProvider(GitHubConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost/api/v1/auth/callback",
		AuthURL:      f.server.URL + "/login/oauth/authorize",
		TokenURL:     f.server.URL + "/login/oauth/access_token",
		UserInfoURL:  f.server.URL + "/user",
	})
}

// recordingAlerter captures security events for assertions.
type recordingAlerter struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAlerter) SecurityEvent(_ context.Context, event, _ string) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

func (a *recordingAlerter) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func newTestService(t *testing.T, github *fakeGitHub) (*Service, *recordingAlerter) {
	return newTestServiceWithTTL(t, github, 0)
}

func newTestServiceWithTTL(t *testing.T, github *fakeGitHub, stateTTL time.Duration) (*Service, *recordingAlerter) {
	t.Helper()

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)

	jwtMgr, err := NewJWTManagerGenerated("folio-test", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	alerter := &recordingAlerter{}
	svc := NewService(
		repositories.NewOAuthStateRepository(database),
		repositories.NewRevokedTokenRepository(database),
		github.provider(),
		NewAdminVerifier(testAdminID),
		jwtMgr,
		alerter,
		stateTTL,
		zap.NewNop(),
	)
	return svc, alerter
}

// beginLogin starts the flow and extracts the state token from the
// authorization URL, the same way the browser would carry it to GitHub.
func beginLogin(t *testing.T, svc *Service, returnTo string) string {
	t.Helper()

	authURL, err := svc.BeginLogin(context.Background(), returnTo)
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestLoginFlowHappyPath(t *testing.T) {
	github := newFakeGitHub(t)
	svc, alerter := newTestService(t, github)
	ctx := context.Background()

	state := beginLogin(t, svc, "/admin/projects")

	pair, err := svc.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "/admin/projects", pair.ReturnTo)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.RefreshTokenExpiresAt.After(pair.AccessTokenExpiresAt))

	claims, err := svc.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "583231", claims.Subject)
	assert.Equal(t, "octocat", claims.Login)

	assert.Empty(t, alerter.recorded())
}

func TestConfiguredStateTTLBoundsLoginWindow(t *testing.T) {
	github := newFakeGitHub(t)

	// A state minted with a negative TTL is born expired, so a callback
	// arriving after the configured window is rejected.
	svc, _ := newTestServiceWithTTL(t, github, -time.Minute)
	state := beginLogin(t, svc, "")

	_, err := svc.HandleCallback(context.Background(), state, "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)

	// The zero value falls back to the default window.
	svc, _ = newTestServiceWithTTL(t, github, 0)
	state = beginLogin(t, svc, "")

	_, err = svc.HandleCallback(context.Background(), state, "good-code")
	require.NoError(t, err)
}

func TestCallbackRejectsForgedState(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)

	_, err := svc.HandleCallback(context.Background(), "forged-state", "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackRejectsStateReplay(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)
	ctx := context.Background()

	state := beginLogin(t, svc, "")

	_, err := svc.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)

	_, err = svc.HandleCallback(ctx, state, "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallbackRejectsBadCode(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)

	state := beginLogin(t, svc, "")

	_, err := svc.HandleCallback(context.Background(), state, "stolen-code")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestCallbackRejectsNonAdminAndAlerts(t *testing.T) {
	github := newFakeGitHub(t)
	svc, alerter := newTestService(t, github)

	github.setIdentity(Identity{ID: 99999, Login: "intruder"})
	state := beginLogin(t, svc, "")

	_, err := svc.HandleCallback(context.Background(), state, "good-code")
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.Equal(t, []string{"login_denied"}, alerter.recorded())
}

func TestCallbackThrottledExchangeIsRetryable(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)

	state := beginLogin(t, svc, "")

	// A 429 from the token endpoint is transient, not a bad grant: the user
	// may retry the whole login flow.
	_, err := svc.HandleCallback(context.Background(), state, "throttled-code")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidGrant)
}

func TestCallbackProviderDown(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)

	state := beginLogin(t, svc, "")
	github.server.Close()

	_, err := svc.HandleCallback(context.Background(), state, "good-code")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRefreshRotationInvalidatesOldToken(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)
	ctx := context.Background()

	state := beginLogin(t, svc, "")
	pair, err := svc.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The rotated-out token is dead.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// The fresh one keeps working and carries the identity forward.
	again, err := svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.ValidateAccess(again.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "583231", claims.Subject)
	assert.Equal(t, "octocat", claims.Login)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)
	ctx := context.Background()

	state := beginLogin(t, svc, "")
	pair, err := svc.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	github := newFakeGitHub(t)
	svc, _ := newTestService(t, github)
	ctx := context.Background()

	state := beginLogin(t, svc, "")
	pair, err := svc.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Logging out twice with the same token is a no-op.
	assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
}

func TestSanitizeReturnTo(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", "/"},
		{"/admin/projects", "/admin/projects"},
		{"https://evil.example.com", ""},
		{"//evil.example.com", ""},
		{"admin", ""},
		{"/ok\r\nSet-Cookie: x=y", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeReturnTo(tc.in), "input %q", tc.in)
	}
}
