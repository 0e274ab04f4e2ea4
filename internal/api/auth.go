package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/auth"
)

// refreshTokenCookie is the name of the httpOnly cookie that stores the
// refresh token. It is scoped to the auth endpoints and never exposed in
// API response bodies.
const refreshTokenCookie = "folio_refresh_token"

// AuthHandler groups all authentication-related HTTP handlers.
// It depends on auth.Service as the single entry point for all auth operations.
type AuthHandler struct {
	svc    *auth.Service
	logger *zap.Logger
	secure bool // true in production (HTTPS), false in development
}

// NewAuthHandler creates a new AuthHandler.
// secure controls whether cookies are set with the Secure flag; set to true
// in production and false in local development over HTTP.
func NewAuthHandler(svc *auth.Service, logger *zap.Logger, secure bool) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger.Named("auth_handler"),
		secure: secure,
	}
}

// tokenResponse is the JSON body returned by Refresh.
// The refresh token is not included; it travels in the httpOnly cookie.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// Login handles GET /api/v1/auth/login.
// Creates a single-use state record and redirects the browser to GitHub's
// authorization page. An optional return_to query parameter names the site
// path to land on after the flow completes; it is validated server-side.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.svc.BeginLogin(r.Context(), r.URL.Query().Get("return_to"))
	if err != nil {
		h.logger.Error("failed to begin login", zap.Error(err))
		ErrInternal(w)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /api/v1/auth/callback.
// Completes the authorization code flow: consumes the state, exchanges the
// code, verifies the GitHub identity is the site admin, and establishes a
// session. The refresh token is set as an httpOnly cookie and the browser is
// redirected to the frontend with the access token in the query string.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// GitHub reports user-facing failures (e.g. the user clicked "cancel")
	// via an error parameter instead of a code.
	if errCode := q.Get("error"); errCode != "" {
		ErrBadRequest(w, "authorization failed at provider: "+errCode)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		ErrBadRequest(w, "missing code or state parameter")
		return
	}

	pair, err := h.svc.HandleCallback(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidState):
			errJSON(w, http.StatusBadRequest, "invalid or expired state", "invalid_state")
		case errors.Is(err, auth.ErrInvalidGrant):
			ErrUnauthorized(w)
		case errors.Is(err, auth.ErrNotAdmin):
			ErrForbidden(w, "this site has a single admin and you are not it")
		case errors.Is(err, auth.ErrProviderUnavailable):
			ErrBadGateway(w, "identity provider unavailable, try again later")
		default:
			h.logger.Error("callback failed", zap.Error(err))
			ErrInternal(w)
		}
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshTokenExpiresAt)

	// Redirect to the frontend with the access token as a query parameter.
	// The frontend must immediately store it in memory and remove it from
	// the URL to avoid leaking via the browser history or referrer headers.
	returnTo := pair.ReturnTo
	if returnTo == "" {
		returnTo = "/admin"
	}
	http.Redirect(w, r, returnTo+"?token="+pair.AccessToken, http.StatusFound)
}

// refreshRequest is the optional JSON body for POST /api/v1/auth/refresh,
// used by non-browser clients that cannot carry the cookie.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /api/v1/auth/refresh.
// Rotates the refresh token and returns a new access token. The presented
// token is taken from the cookie when present, otherwise from the body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshTokenFromRequest(w, r)
	if raw == "" {
		ErrUnauthorized(w)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenInvalid) {
			// Expired, revoked, tampered, or lost a rotation race: the session
			// is over either way. Clear the cookie so the browser stops retrying.
			h.clearRefreshCookie(w)
			ErrUnauthorized(w)
			return
		}
		// Anything else is an infrastructure failure. The token may still be
		// good, so the cookie survives for a retry once the store is back.
		h.logger.Error("refresh failed", zap.Error(err))
		ErrInternal(w)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshTokenExpiresAt)
	Ok(w, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessTokenExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /api/v1/auth/logout.
// Blacklists the refresh token and clears the cookie. Always succeeds from
// the client's point of view: a missing or already-dead token means the
// session is gone, which is the requested outcome.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshTokenFromRequest(w, r)
	if raw != "" {
		if err := h.svc.Logout(r.Context(), raw); err != nil {
			h.logger.Warn("logout error", zap.Error(err))
		}
	}

	h.clearRefreshCookie(w)
	NoContent(w)
}

// refreshTokenFromRequest extracts the refresh token from the cookie or,
// failing that, from the JSON body. Returns "" when neither is present or
// the body is unreadable; the caller turns "" into its own error response.
func (h *AuthHandler) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

// setRefreshCookie writes the refresh token as an httpOnly Secure cookie,
// scoped to the auth endpoints so it never rides along on content requests.
func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/api/v1/auth",
	})
}

// clearRefreshCookie expires the refresh token cookie immediately.
func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/api/v1/auth",
	})
}
