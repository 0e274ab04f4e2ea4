// Package metrics declares the Prometheus instruments exposed on /metrics.
// Counters are registered with the default registry via promauto so callers
// just increment package-level variables.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts completed OAuth callbacks by outcome: success,
	// invalid_state, invalid_grant, provider_unavailable, not_admin, error.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_auth_login_attempts_total",
		Help: "Completed OAuth login callbacks by outcome.",
	}, []string{"outcome"})

	// TokenRotations counts successful refresh token rotations.
	TokenRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_auth_token_rotations_total",
		Help: "Successful refresh token rotations.",
	})

	// GuardRejections counts requests rejected by the auth middleware,
	// labeled by reason: missing, expired, invalid.
	GuardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_auth_guard_rejections_total",
		Help: "Requests rejected by the authentication middleware by reason.",
	}, []string{"reason"})

	// StatesPurged counts OAuth state rows removed by the cleanup job.
	StatesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_cleanup_states_purged_total",
		Help: "Consumed or expired OAuth states removed by the cleanup job.",
	})

	// RevokedTokensPurged counts expired blacklist rows removed by the
	// cleanup job.
	RevokedTokensPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_cleanup_revoked_tokens_purged_total",
		Help: "Expired revoked token entries removed by the cleanup job.",
	})
)
