package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/db"
)

// gormRevokedTokenRepository is the GORM implementation of RevokedTokenRepository.
type gormRevokedTokenRepository struct {
	db *gorm.DB
}

// NewRevokedTokenRepository returns a RevokedTokenRepository backed by the
// provided *gorm.DB.
func NewRevokedTokenRepository(database *gorm.DB) RevokedTokenRepository {
	return &gormRevokedTokenRepository{db: database}
}

// Revoke blacklists a refresh token JTI. The jti column is the primary key,
// so a second Revoke of the same JTI hits the unique constraint and maps to
// ErrConflict. Rotation relies on that: when two requests present the same
// refresh token concurrently, exactly one insert succeeds and only that
// request is allowed to mint new tokens.
func (r *gormRevokedTokenRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	entry := db.RevokedToken{
		JTI:       jti,
		ExpiresAt: expiresAt,
		RevokedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("revoked_tokens: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether the JTI is on the blacklist.
func (r *gormRevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var entry db.RevokedToken
	err := r.db.WithContext(ctx).First(&entry, "jti = ?", jti).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("revoked_tokens: is revoked: %w", err)
	}
	return true, nil
}

// DeleteExpired removes blacklist entries for tokens that have expired on
// their own. An expired token fails JWT validation before the blacklist is
// ever consulted, so the rows carry no information anymore.
func (r *gormRevokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&db.RevokedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("revoked_tokens: delete expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// isUniqueViolation reports whether err is a primary key or unique constraint
// violation. gorm.ErrDuplicatedKey covers drivers with translation enabled;
// the string checks cover sqlite (modernc) and postgres error text for
// drivers without it.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
