package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/db"
)

// gormDocumentRepository is the GORM implementation of DocumentRepository.
type gormDocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository returns a DocumentRepository backed by the provided *gorm.DB.
func NewDocumentRepository(database *gorm.DB) DocumentRepository {
	return &gormDocumentRepository{db: database}
}

func (r *gormDocumentRepository) Create(ctx context.Context, document *db.Document) error {
	if err := r.db.WithContext(ctx).Create(document).Error; err != nil {
		return fmt.Errorf("documents: create: %w", err)
	}
	return nil
}

func (r *gormDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Document, error) {
	var document db.Document
	err := r.db.WithContext(ctx).First(&document, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("documents: get by id: %w", err)
	}
	return &document, nil
}

func (r *gormDocumentRepository) Update(ctx context.Context, document *db.Document) error {
	result := r.db.WithContext(ctx).Save(document)
	if result.Error != nil {
		return fmt.Errorf("documents: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&db.Document{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("documents: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns documents and the matching total. The public listing passes
// publishedOnly=true; the authenticated admin listing sees everything.
func (r *gormDocumentRepository) List(ctx context.Context, opts ListOptions, publishedOnly bool) ([]db.Document, int64, error) {
	var documents []db.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&db.Document{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("documents: list count: %w", err)
	}

	if err := query.
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("created_at DESC").
		Find(&documents).Error; err != nil {
		return nil, 0, fmt.Errorf("documents: list: %w", err)
	}

	return documents, total, nil
}
