package auth

import (
	"crypto/subtle"
	"strconv"
)

// Principal is the authenticated site admin. There is exactly one of these
// per deployment; it exists as a type so the session layer does not pass
// around bare strings.
type Principal struct {
	// GitHubID is the numeric GitHub account ID. Used as the JWT subject.
	GitHubID int64

	// Login is the GitHub login at the time of authentication.
	Login string
}

// AdminVerifier decides whether a GitHub identity is the configured site
// owner. Matching is on the numeric account ID, never the login: logins can
// be renamed and even re-registered by someone else.
type AdminVerifier struct {
	adminID int64
}

// NewAdminVerifier returns a verifier bound to the given GitHub account ID.
func NewAdminVerifier(adminID int64) *AdminVerifier {
	return &AdminVerifier{adminID: adminID}
}

// Verify returns the admin Principal if identity belongs to the configured
// account, or ErrNotAdmin otherwise. The comparison is constant-time; the
// IDs are not secret, but keeping the check timing-independent costs nothing.
func (v *AdminVerifier) Verify(identity *Identity) (*Principal, error) {
	got := []byte(strconv.FormatInt(identity.ID, 10))
	want := []byte(strconv.FormatInt(v.adminID, 10))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrNotAdmin
	}
	return &Principal{GitHubID: identity.ID, Login: identity.Login}, nil
}
