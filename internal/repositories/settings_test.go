package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliohq/folio/internal/db"
)

func initTestEncryption(t *testing.T) {
	t.Helper()
	require.NoError(t, db.InitEncryption([]byte("0123456789abcdef0123456789abcdef")))
}

func TestSettingsSetGetRoundTrip(t *testing.T) {
	initTestEncryption(t)
	repo := NewSettingsRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "alert.webhook.secret", "shh"))

	setting, err := repo.Get(ctx, "alert.webhook.secret")
	require.NoError(t, err)
	assert.Equal(t, db.EncryptedString("shh"), setting.Value)

	// The value on disk must be ciphertext, not the plaintext.
	var raw string
	require.NoError(t, repo.(*gormSettingsRepository).database.
		Raw("SELECT value FROM settings WHERE key = ?", "alert.webhook.secret").
		Scan(&raw).Error)
	assert.NotEqual(t, "shh", raw)
	assert.NotEmpty(t, raw)
}

func TestSettingsSetOverwrites(t *testing.T) {
	initTestEncryption(t)
	repo := NewSettingsRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "alert.smtp.host", "smtp.old.example.com"))
	require.NoError(t, repo.Set(ctx, "alert.smtp.host", "smtp.new.example.com"))

	setting, err := repo.Get(ctx, "alert.smtp.host")
	require.NoError(t, err)
	assert.Equal(t, db.EncryptedString("smtp.new.example.com"), setting.Value)
}

func TestSettingsGetManyByPrefix(t *testing.T) {
	initTestEncryption(t)
	repo := NewSettingsRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "alert.smtp.host", "smtp.example.com"))
	require.NoError(t, repo.Set(ctx, "alert.smtp.port", "587"))
	require.NoError(t, repo.Set(ctx, "alert.webhook.url", "https://hooks.example.com/x"))

	smtp, err := repo.GetMany(ctx, "alert.smtp.")
	require.NoError(t, err)
	assert.Len(t, smtp, 2)

	all, err := repo.GetMany(ctx, "alert.")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSettingsGetMissingAndDelete(t *testing.T) {
	initTestEncryption(t)
	repo := NewSettingsRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is a no-op, not an error.
	assert.NoError(t, repo.Delete(ctx, "nope"))

	require.NoError(t, repo.Set(ctx, "alert.webhook.enabled", "true"))
	require.NoError(t, repo.Delete(ctx, "alert.webhook.enabled"))
	_, err = repo.Get(ctx, "alert.webhook.enabled")
	assert.ErrorIs(t, err, ErrNotFound)
}
