package auth

import "errors"

// Sentinel errors returned by the auth service. Callers should use errors.Is
// for comparison; the API layer maps each one to a specific HTTP status.
var (
	// ErrInvalidState is returned when the OAuth state parameter presented at
	// the callback is unknown, expired, or already consumed. All three cases
	// are indistinguishable on purpose (CSRF protection must not leak which
	// one it was).
	ErrInvalidState = errors.New("auth: invalid or expired state")

	// ErrProviderUnavailable is returned when GitHub cannot be reached or
	// answers with a server error during code exchange or identity fetch.
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")

	// ErrInvalidGrant is returned when GitHub rejects the authorization code
	// (wrong, reused, or expired code, or bad client credentials).
	ErrInvalidGrant = errors.New("auth: authorization code rejected")

	// ErrNotAdmin is returned when the authenticated GitHub account is not
	// the configured site owner. This is a single-user system: any other
	// identity is refused a session outright.
	ErrNotAdmin = errors.New("auth: account is not the site admin")

	// ErrTokenExpired is returned when a JWT has expired.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or verified,
	// carries the wrong token_use, or has been revoked.
	ErrTokenInvalid = errors.New("auth: token invalid")
)
