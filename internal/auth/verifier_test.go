package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminVerifierAcceptsAdmin(t *testing.T) {
	v := NewAdminVerifier(583231)

	principal, err := v.Verify(&Identity{ID: 583231, Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, int64(583231), principal.GitHubID)
	assert.Equal(t, "octocat", principal.Login)
}

func TestAdminVerifierRejectsEveryoneElse(t *testing.T) {
	v := NewAdminVerifier(583231)

	_, err := v.Verify(&Identity{ID: 583232, Login: "octocat"})
	assert.ErrorIs(t, err, ErrNotAdmin)

	// A matching login must not help; only the numeric ID counts.
	_, err = v.Verify(&Identity{ID: 1, Login: "octocat"})
	assert.ErrorIs(t, err, ErrNotAdmin)
}
