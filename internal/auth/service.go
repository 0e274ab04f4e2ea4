package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/repositories"
)

// DefaultStateTTL is how long an issued OAuth state stays consumable when no
// TTL is configured. Long enough for the user to type a password and pass 2FA
// at GitHub, short enough to keep the replay window small.
const DefaultStateTTL = 10 * time.Minute

// Alerter receives security events the admin should hear about out of band.
// The notification layer implements it; a no-op implementation is fine when
// no delivery channel is configured.
type Alerter interface {
	SecurityEvent(ctx context.Context, event, detail string)
}

// TokenPair is a freshly issued access/refresh token set.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time

	// ReturnTo is the site path the login flow was started from, carried
	// through the state record. Empty outside of the callback path.
	ReturnTo string
}

// Service orchestrates the GitHub login flow and the session lifecycle:
// state issuance and consumption, code exchange, admin verification, token
// issuance, refresh rotation, and logout.
type Service struct {
	states   repositories.OAuthStateRepository
	revoked  repositories.RevokedTokenRepository
	provider *GitHubProvider
	verifier *AdminVerifier
	jwt      *JWTManager
	alerter  Alerter
	stateTTL time.Duration
	log      *zap.Logger
}

// NewService creates the auth service. alerter may be nil when no alert
// channel is configured; a zero stateTTL falls back to DefaultStateTTL.
func NewService(
	states repositories.OAuthStateRepository,
	revoked repositories.RevokedTokenRepository,
	provider *GitHubProvider,
	verifier *AdminVerifier,
	jwtManager *JWTManager,
	alerter Alerter,
	stateTTL time.Duration,
	log *zap.Logger,
) *Service {
	if stateTTL == 0 {
		stateTTL = DefaultStateTTL
	}
	return &Service{
		states:   states,
		revoked:  revoked,
		provider: provider,
		verifier: verifier,
		jwt:      jwtManager,
		alerter:  alerter,
		stateTTL: stateTTL,
		log:      log,
	}
}

// BeginLogin creates a single-use state record and returns the GitHub
// authorization URL to redirect the browser to. returnTo is sanitized to a
// site-relative path before being stored; anything else is dropped so the
// callback can never redirect off-site.
func (s *Service) BeginLogin(ctx context.Context, returnTo string) (string, error) {
	state, err := s.states.Create(ctx, s.stateTTL, sanitizeReturnTo(returnTo))
	if err != nil {
		return "", fmt.Errorf("auth: creating login state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// HandleCallback completes the login flow: it consumes the state, exchanges
// the code, resolves the GitHub identity, verifies it is the site admin, and
// issues a session token pair.
//
// The state is consumed before the code exchange. A forged or replayed
// callback must die on the cheap local check, not after a round trip to
// GitHub with an attacker-supplied code.
func (s *Service) HandleCallback(ctx context.Context, state, code string) (*TokenPair, error) {
	consumed, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("invalid_state").Inc()
			s.log.Warn("callback with invalid state")
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("auth: consuming state: %w", err)
	}

	providerToken, err := s.provider.Exchange(ctx, code)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(outcomeForError(err)).Inc()
		s.log.Warn("code exchange failed", zap.Error(err))
		return nil, err
	}

	identity, err := s.provider.FetchIdentity(ctx, providerToken)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(outcomeForError(err)).Inc()
		s.log.Warn("identity fetch failed", zap.Error(err))
		return nil, err
	}

	principal, err := s.verifier.Verify(identity)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("not_admin").Inc()
		s.log.Warn("login attempt by non-admin account",
			zap.Int64("github_id", identity.ID),
			zap.String("login", identity.Login))
		if s.alerter != nil {
			s.alerter.SecurityEvent(ctx, "login_denied",
				fmt.Sprintf("GitHub account %q (id %d) completed the OAuth flow but is not the site admin", identity.Login, identity.ID))
		}
		return nil, err
	}

	pair, err := s.issueTokenPair(ctx, principal)
	if err != nil {
		return nil, err
	}
	pair.ReturnTo = consumed.ReturnTo

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.log.Info("admin logged in", zap.String("login", principal.Login))
	return pair, nil
}

// Refresh rotates a refresh token: the presented token's JTI is blacklisted
// and a fresh pair is issued. When two requests race with the same token,
// the blacklist insert admits exactly one of them; the loser gets
// ErrTokenInvalid and must re-login.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateToken(rawRefresh, TokenUseRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: checking revocation: %w", err)
	}
	if revoked {
		s.log.Warn("refresh with revoked token", zap.String("jti", claims.ID))
		return nil, ErrTokenInvalid
	}

	// The insert is the rotation's atomic step. The IsRevoked read above is
	// only a fast path; losing the race here is caught by ErrConflict.
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			s.log.Warn("concurrent refresh rotation lost", zap.String("jti", claims.ID))
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("auth: revoking rotated token: %w", err)
	}

	pair, err := s.issueTokenPair(ctx, &Principal{Login: claims.Login, GitHubID: subjectID(claims.Subject)})
	if err != nil {
		return nil, err
	}

	metrics.TokenRotations.Inc()
	return pair, nil
}

// Logout blacklists the presented refresh token. Logging out twice with the
// same token is a no-op, and an invalid token is reported as such so the
// client clears its session either way.
func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	claims, err := s.jwt.ValidateToken(rawRefresh, TokenUseRefresh)
	if err != nil {
		return err
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil
		}
		return fmt.Errorf("auth: revoking token on logout: %w", err)
	}

	s.log.Info("admin logged out", zap.String("login", claims.Login))
	return nil
}

// ValidateAccess verifies an access token for the guard middleware.
func (s *Service) ValidateAccess(tokenString string) (*Claims, error) {
	return s.jwt.ValidateToken(tokenString, TokenUseAccess)
}

func (s *Service) issueTokenPair(ctx context.Context, principal *Principal) (*TokenPair, error) {
	subject := strconv.FormatInt(principal.GitHubID, 10)

	access, accessClaims, err := s.jwt.GenerateAccessToken(subject, principal.Login)
	if err != nil {
		return nil, err
	}

	refresh, refreshClaims, err := s.jwt.GenerateRefreshToken(subject, principal.Login)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// sanitizeReturnTo accepts only site-relative paths. Absolute URLs and
// protocol-relative paths ("//evil.example") are replaced with the root.
func sanitizeReturnTo(returnTo string) string {
	if returnTo == "" {
		return ""
	}
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return ""
	}
	if strings.ContainsAny(returnTo, "\r\n") {
		return ""
	}
	return returnTo
}

// outcomeForError maps provider errors to a metric label.
func outcomeForError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "error"
	}
}

// subjectID parses the numeric subject claim. A malformed subject yields 0,
// which never matches a real GitHub account.
func subjectID(subject string) int64 {
	id, _ := strconv.ParseInt(subject, 10, 64)
	return id
}
