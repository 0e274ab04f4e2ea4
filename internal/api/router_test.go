package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliohq/folio/internal/auth"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// testEnv is a fully wired router over an in-memory database, plus the
// pieces tests need to mint tokens and seed data directly.
type testEnv struct {
	router    http.Handler
	jwt       *auth.JWTManager
	documents repositories.DocumentRepository
}

func newTestEnv(t *testing.T, authRPM int) *testEnv {
	t.Helper()

	require.NoError(t, db.InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)

	jwtMgr, err := auth.NewJWTManagerGenerated("folio-test", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	states := repositories.NewOAuthStateRepository(database)
	revoked := repositories.NewRevokedTokenRepository(database)
	companies := repositories.NewCompanyRepository(database)
	education := repositories.NewEducationRepository(database)
	projects := repositories.NewProjectRepository(database)
	documents := repositories.NewDocumentRepository(database)
	settings := repositories.NewSettingsRepository(database)

	provider := auth.NewGitHubProvider(auth.GitHubConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost/api/v1/auth/callback",
	})
	authSvc := auth.NewService(states, revoked, provider, auth.NewAdminVerifier(583231), jwtMgr, nil, 0, zap.NewNop())

	router := NewRouter(RouterConfig{
		AuthService:           authSvc,
		Logger:                zap.NewNop(),
		Database:              database,
		Companies:             companies,
		Education:             education,
		Projects:              projects,
		Documents:             documents,
		Settings:              settings,
		AuthRequestsPerMinute: authRPM,
	})

	return &testEnv{
		router:    router,
		jwt:       jwtMgr,
		documents: documents,
	}
}

func (e *testEnv) accessToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken("583231", "octocat")
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NoError(t, json.Unmarshal(body.Data, dst))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicReadsAreOpen(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, path := range []string{
		"/api/v1/companies",
		"/api/v1/education",
		"/api/v1/projects",
		"/api/v1/documents",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "GET %s", path)
	}
}

func TestMutationsRequireAuth(t *testing.T) {
	env := newTestEnv(t, 0)

	requests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/companies"},
		{http.MethodPatch, "/api/v1/companies/00000000-0000-0000-0000-000000000000"},
		{http.MethodDelete, "/api/v1/companies/00000000-0000-0000-0000-000000000000"},
		{http.MethodPost, "/api/v1/education"},
		{http.MethodPost, "/api/v1/projects"},
		{http.MethodPost, "/api/v1/documents"},
		{http.MethodGet, "/api/v1/documents/all"},
		{http.MethodGet, "/api/v1/settings/alerts"},
		{http.MethodPut, "/api/v1/settings/alerts"},
	}
	for _, r := range requests {
		rec := env.do(httptest.NewRequest(r.method, r.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}
}

func TestCompanyCreateAndList(t *testing.T) {
	env := newTestEnv(t, 0)
	token := env.accessToken(t)

	payload := `{"name":"Acme Systems","role":"Backend Engineer","start_date":"2022-03-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/companies", bytes.NewBufferString(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		StartDate string `json:"start_date"`
	}
	decodeData(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Acme Systems", created.Name)
	assert.Equal(t, "2022-03-01", created.StartDate)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decodeData(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Acme Systems", list.Items[0].Name)
}

func TestCompanyCreateValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	token := env.accessToken(t)

	for name, payload := range map[string]string{
		"missing name":  `{"role":"r","start_date":"2022-03-01"}`,
		"missing role":  `{"name":"n","start_date":"2022-03-01"}`,
		"bad date":      `{"name":"n","role":"r","start_date":"March 1st"}`,
		"unknown field": `{"name":"n","role":"r","start_date":"2022-03-01","bogus":true}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/companies", bytes.NewBufferString(payload))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestDocumentsPublishedFilter(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	require.NoError(t, env.documents.Create(ctx, &db.Document{Title: "Resume", Kind: "resume", URL: "https://cdn.example.com/r.pdf", Published: true}))
	require.NoError(t, env.documents.Create(ctx, &db.Document{Title: "Draft", Kind: "other", URL: "https://cdn.example.com/d.pdf", Published: false}))

	// Public listing sees only the published document.
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decodeData(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)

	// The admin listing sees both.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/all", nil)
	req.Header.Set("Authorization", "Bearer "+env.accessToken(t))
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeData(t, rec, &list)
	assert.Equal(t, int64(2), list.Total)
}

func TestUnpublishedDocumentVisibleToAdminOnly(t *testing.T) {
	env := newTestEnv(t, 0)

	draft := &db.Document{Title: "Draft", Kind: "other", URL: "https://cdn.example.com/d.pdf", Published: false}
	require.NoError(t, env.documents.Create(context.Background(), draft))
	path := "/api/v1/documents/" + draft.ID.String()

	// Anonymous callers get the same 404 as for a missing document.
	rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The admin sees the draft through the same route.
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+env.accessToken(t))
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc struct {
		Title     string `json:"title"`
		Published bool   `json:"published"`
	}
	decodeData(t, rec, &doc)
	assert.Equal(t, "Draft", doc.Title)
	assert.False(t, doc.Published)

	// A garbage token does not turn into a 401 here, just an anonymous view.
	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshWithCookieRotates(t *testing.T) {
	env := newTestEnv(t, 0)

	refresh, _, err := env.jwt.GenerateRefreshToken("583231", "octocat")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "folio_refresh_token", Value: refresh})
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   string `json:"expires_at"`
	}
	decodeData(t, rec, &tokens)
	assert.NotEmpty(t, tokens.AccessToken)

	// A rotated cookie must be present and differ from the presented token.
	var newCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "folio_refresh_token" {
			newCookie = c
		}
	}
	require.NotNil(t, newCookie)
	assert.NotEqual(t, refresh, newCookie.Value)
	assert.True(t, newCookie.HttpOnly)

	// Replaying the rotated-out token fails and clears the cookie.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "folio_refresh_token", Value: refresh})
	rec = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "folio_refresh_token" {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

// failingRevocationStore errors on every call, standing in for a database
// outage during refresh.
type failingRevocationStore struct{}

func (failingRevocationStore) Revoke(context.Context, string, time.Time) error {
	return errors.New("revocation store down")
}

func (failingRevocationStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("revocation store down")
}

func (failingRevocationStore) DeleteExpired(context.Context) (int64, error) {
	return 0, errors.New("revocation store down")
}

func TestRefreshKeepsCookieOnStoreOutage(t *testing.T) {
	jwtMgr, err := auth.NewJWTManagerGenerated("folio-test", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	svc := auth.NewService(nil, failingRevocationStore{}, nil, nil, jwtMgr, nil, 0, zap.NewNop())
	handler := NewAuthHandler(svc, zap.NewNop(), false)

	refresh, _, err := jwtMgr.GenerateRefreshToken("583231", "octocat")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "folio_refresh_token", Value: refresh})
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	// A transient outage is a 500 and the still-valid token survives in the
	// browser; only a dead token may clear the cookie.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, 0)

	refresh, _, err := env.jwt.GenerateRefreshToken("583231", "octocat")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "folio_refresh_token", Value: refresh})
	rec := env.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The revoked token can no longer refresh.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "folio_refresh_token", Value: refresh})
	rec = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, 1) // burst of 1 request

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec := env.do(req)
	assert.Equal(t, http.StatusFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	req.RemoteAddr = "198.51.100.7:4001"
	rec = env.do(req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client IP gets its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec = env.do(req)
	assert.Equal(t, http.StatusFound, rec.Code)

	// Content routes are never rate limited.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackMissingParams(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback?error=access_denied", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback?code=x&state=forged", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_state")
}
