// Package repositories defines the data access layer. Each repository is an
// interface with a GORM-backed implementation, so handlers and services can
// be tested against in-memory SQLite or hand-rolled fakes.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foliohq/folio/internal/db"
)

// -----------------------------------------------------------------------------
// Common
// -----------------------------------------------------------------------------

// ListOptions contains common pagination options for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// -----------------------------------------------------------------------------
// OAuthStateRepository
// -----------------------------------------------------------------------------

type OAuthStateRepository interface {
	// Create generates a fresh single-use state token, persists it with the
	// given lifetime, and returns the token string. returnTo is an optional
	// site path the frontend wants to land on after the login completes.
	Create(ctx context.Context, ttl time.Duration, returnTo string) (string, error)

	// Consume atomically marks the state consumed and returns it. The mark is
	// a single conditional UPDATE, so concurrent callbacks presenting the same
	// token resolve to exactly one winner even across server replicas. Returns
	// ErrNotFound if the token is unknown, already consumed, or expired.
	Consume(ctx context.Context, token string) (*db.OAuthState, error)

	// DeleteStale removes consumed and expired states. Returns the number of
	// rows removed. Idempotent, safe to run on overlapping schedules.
	DeleteStale(ctx context.Context) (int64, error)
}

// -----------------------------------------------------------------------------
// RevokedTokenRepository
// -----------------------------------------------------------------------------

type RevokedTokenRepository interface {
	// Revoke blacklists a refresh token JTI until expiresAt. Returns
	// ErrConflict if the JTI is already revoked, which is how concurrent
	// rotations of the same refresh token resolve to a single winner.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether the JTI is on the blacklist.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes blacklist entries whose token has expired on its
	// own. Returns the number of rows removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// -----------------------------------------------------------------------------
// CompanyRepository
// -----------------------------------------------------------------------------

type CompanyRepository interface {
	Create(ctx context.Context, company *db.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Company, error)
	Update(ctx context.Context, company *db.Company) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]db.Company, int64, error)
}

// -----------------------------------------------------------------------------
// EducationRepository
// -----------------------------------------------------------------------------

type EducationRepository interface {
	Create(ctx context.Context, education *db.Education) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Education, error)
	Update(ctx context.Context, education *db.Education) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]db.Education, int64, error)
}

// -----------------------------------------------------------------------------
// ProjectRepository
// -----------------------------------------------------------------------------

type ProjectRepository interface {
	Create(ctx context.Context, project *db.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Project, error)
	Update(ctx context.Context, project *db.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]db.Project, int64, error)
	ListFeatured(ctx context.Context) ([]db.Project, error)
}

// -----------------------------------------------------------------------------
// DocumentRepository
// -----------------------------------------------------------------------------

type DocumentRepository interface {
	Create(ctx context.Context, document *db.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Document, error)
	Update(ctx context.Context, document *db.Document) error
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns documents and the matching total count. When publishedOnly
	// is true, unpublished documents are excluded (the public listing).
	List(ctx context.Context, opts ListOptions, publishedOnly bool) ([]db.Document, int64, error)
}

// -----------------------------------------------------------------------------
// SettingsRepository
// -----------------------------------------------------------------------------

type SettingsRepository interface {
	Get(ctx context.Context, key string) (*db.Setting, error)
	Set(ctx context.Context, key string, value db.EncryptedString) error
	GetMany(ctx context.Context, prefix string) ([]db.Setting, error)
	Delete(ctx context.Context, key string) error
}
