package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/db"
)

// gormEducationRepository is the GORM implementation of EducationRepository.
type gormEducationRepository struct {
	db *gorm.DB
}

// NewEducationRepository returns an EducationRepository backed by the provided *gorm.DB.
func NewEducationRepository(database *gorm.DB) EducationRepository {
	return &gormEducationRepository{db: database}
}

func (r *gormEducationRepository) Create(ctx context.Context, education *db.Education) error {
	if err := r.db.WithContext(ctx).Create(education).Error; err != nil {
		return fmt.Errorf("education: create: %w", err)
	}
	return nil
}

func (r *gormEducationRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Education, error) {
	var education db.Education
	err := r.db.WithContext(ctx).First(&education, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("education: get by id: %w", err)
	}
	return &education, nil
}

func (r *gormEducationRepository) Update(ctx context.Context, education *db.Education) error {
	result := r.db.WithContext(ctx).Save(education)
	if result.Error != nil {
		return fmt.Errorf("education: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormEducationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&db.Education{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("education: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns education entries, most recent start date first.
func (r *gormEducationRepository) List(ctx context.Context, opts ListOptions) ([]db.Education, int64, error) {
	var entries []db.Education
	var total int64

	if err := r.db.WithContext(ctx).Model(&db.Education{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("education: list count: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("start_date DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("education: list: %w", err)
	}

	return entries, total, nil
}
