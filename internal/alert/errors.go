package alert

import "errors"

// Sentinel errors returned by the alert service and its senders.
// Callers should use errors.Is for comparison.
var (
	// ErrSendFailed is returned when an alert could not be delivered through
	// one or more channels (email, webhook). It wraps the underlying cause
	// and is non-fatal: alert delivery never blocks the auth flow that
	// triggered it.
	ErrSendFailed = errors.New("alert: send failed")

	// ErrConfigNotFound is returned when a required configuration key is
	// missing from the settings table (e.g. SMTP not configured yet).
	ErrConfigNotFound = errors.New("alert: configuration not found")

	// ErrInvalidConfig is returned when settings exist but contain invalid or
	// incomplete values (e.g. SMTP host present but port missing).
	ErrInvalidConfig = errors.New("alert: invalid configuration")
)
