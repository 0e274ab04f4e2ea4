package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains the common fields shared by all UUID-keyed models.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering without a separate created_at sort. CreatedAt and
// UpdatedAt are managed automatically by GORM.
type Base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// -----------------------------------------------------------------------------
// Auth
// -----------------------------------------------------------------------------

// OAuthState is a one-time CSRF state token binding an outgoing authorization
// redirect to its eventual callback. The token itself is the primary key:
// it is an opaque random string with at least 128 bits of entropy, so there
// is no need for a surrogate ID.
//
// A state is valid for consumption iff ConsumedAt is nil and ExpiresAt is in
// the future. Consumption happens as a single conditional UPDATE in the
// repository layer, never as a read followed by a write, so that exactly
// one of any number of racing callbacks wins, across all server replicas.
type OAuthState struct {
	Token      string    `gorm:"primaryKey"`
	CreatedAt  time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	ConsumedAt *time.Time
	ReturnTo   string `gorm:"default:''"` // site-relative path to land on after login
}

// TableName overrides GORM's pluralization ("o_auth_states").
func (OAuthState) TableName() string { return "oauth_states" }

// RevokedToken blacklists the JTI of a refresh token that has been rotated
// out or explicitly logged out. Rows carry the expiry of the original token
// so the cleanup job can drop them once the token would have expired anyway.
//
// JTI is the primary key on purpose: inserting the same JTI twice fails on
// the unique constraint, which is what makes concurrent rotation of the same
// refresh token a one-winner race.
type RevokedToken struct {
	JTI       string    `gorm:"column:jti;primaryKey"`
	ExpiresAt time.Time `gorm:"not null;index"`
	RevokedAt time.Time `gorm:"not null"`
}

func (RevokedToken) TableName() string { return "revoked_tokens" }

// -----------------------------------------------------------------------------
// Portfolio content
// -----------------------------------------------------------------------------

// Company is a work experience entry: an employer plus the role held there.
// EndDate is nil for the current position.
type Company struct {
	Base
	Name        string `gorm:"not null"`
	Role        string `gorm:"not null"`
	Description string `gorm:"type:text;default:''"`
	Location    string `gorm:"default:''"`
	URL         string `gorm:"default:''"`
	LogoURL     string `gorm:"default:''"`
	StartDate   time.Time
	EndDate     *time.Time
	SortOrder   int `gorm:"not null;default:0"`
}

// Education is a degree or certification program entry.
type Education struct {
	Base
	School      string `gorm:"not null"`
	Degree      string `gorm:"not null"`
	Field       string `gorm:"default:''"`
	Description string `gorm:"type:text;default:''"`
	StartDate   time.Time
	EndDate     *time.Time
}

// TableName overrides GORM's pluralization ("educations").
func (Education) TableName() string { return "education" }

// Project is a portfolio project with optional live and repository links.
// Tags holds a JSON array of technology labels, serialized as text the same
// way the frontend consumes it.
type Project struct {
	Base
	Name        string `gorm:"not null"`
	Description string `gorm:"type:text;default:''"`
	URL         string `gorm:"default:''"`
	RepoURL     string `gorm:"default:''"`
	Tags        string `gorm:"type:text;default:'[]'"` // JSON array of strings
	Featured    bool   `gorm:"not null;default:false"`
	SortOrder   int    `gorm:"not null;default:0"`
}

// Document is downloadable material (résumé, certificates). Only metadata is
// stored here; the file itself lives on the static asset host at URL.
// Unpublished documents are hidden from the public listing.
type Document struct {
	Base
	Title       string `gorm:"not null"`
	Kind        string `gorm:"not null;default:'other'"` // "resume", "certificate", "other"
	URL         string `gorm:"not null"`
	ContentType string `gorm:"default:''"`
	SizeBytes   int64  `gorm:"default:0"`
	Published   bool   `gorm:"not null;default:false"`
}

// -----------------------------------------------------------------------------
// Settings
// -----------------------------------------------------------------------------

// Setting is a generic key-value configuration entry stored in the database.
// Keys are namespaced by convention (e.g. "alert.webhook.url"). Sensitive
// values (e.g. "alert.smtp.password") are encrypted at the application layer
// via EncryptedString before being persisted.
//
// Setting does not embed Base because it uses a string primary key (the key
// itself) rather than a UUID, and does not need CreatedAt.
type Setting struct {
	Key       string          `gorm:"primaryKey"`
	Value     EncryptedString `gorm:"type:text;not null"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime"`
}
