package repositories

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/db"
)

// stateTokenBytes is the entropy of a state token before encoding. 32 bytes
// is double the 128-bit minimum needed to make guessing infeasible.
const stateTokenBytes = 32

// gormOAuthStateRepository is the GORM implementation of OAuthStateRepository.
type gormOAuthStateRepository struct {
	db *gorm.DB
}

// NewOAuthStateRepository returns an OAuthStateRepository backed by the
// provided *gorm.DB.
func NewOAuthStateRepository(database *gorm.DB) OAuthStateRepository {
	return &gormOAuthStateRepository{db: database}
}

// Create generates a fresh state token and persists it with the given TTL.
func (r *gormOAuthStateRepository) Create(ctx context.Context, ttl time.Duration, returnTo string) (string, error) {
	token, err := generateStateToken()
	if err != nil {
		return "", fmt.Errorf("oauth_states: generate token: %w", err)
	}

	now := time.Now().UTC()
	state := db.OAuthState{
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		ReturnTo:  returnTo,
	}
	if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
		return "", fmt.Errorf("oauth_states: create: %w", err)
	}
	return token, nil
}

// Consume atomically marks the state consumed and returns it.
//
// The consumption is a single conditional UPDATE guarded on consumed_at IS
// NULL and expires_at in the future. RowsAffected tells us whether this call
// won the row: anything other than exactly 1 means the token is unknown,
// expired, or was already consumed by a concurrent callback, and all of those
// collapse into ErrNotFound. There is deliberately no read-before-write here;
// a SELECT followed by an UPDATE would let two racing callbacks both observe
// an unconsumed row.
func (r *gormOAuthStateRepository) Consume(ctx context.Context, token string) (*db.OAuthState, error) {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&db.OAuthState{}).
		Where("token = ? AND consumed_at IS NULL AND expires_at > ?", token, now).
		Update("consumed_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("oauth_states: consume: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var state db.OAuthState
	if err := r.db.WithContext(ctx).First(&state, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Won the UPDATE but the row vanished before the read. Only a
			// concurrent cleanup pass can do that, and the consumption
			// already succeeded, so return the state we know.
			return &db.OAuthState{Token: token, ConsumedAt: &now}, nil
		}
		return nil, fmt.Errorf("oauth_states: consume readback: %w", err)
	}
	return &state, nil
}

// DeleteStale removes consumed states and states past their expiry.
// Consumed states are kept until cleanup rather than deleted inline so the
// consume path stays a single write.
func (r *gormOAuthStateRepository) DeleteStale(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("consumed_at IS NOT NULL OR expires_at < ?", time.Now().UTC()).
		Delete(&db.OAuthState{})
	if result.Error != nil {
		return 0, fmt.Errorf("oauth_states: delete stale: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// generateStateToken returns a URL-safe random token with 256 bits of entropy.
func generateStateToken() (string, error) {
	buf := make([]byte, stateTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
