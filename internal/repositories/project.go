package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/db"
)

// gormProjectRepository is the GORM implementation of ProjectRepository.
type gormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository returns a ProjectRepository backed by the provided *gorm.DB.
func NewProjectRepository(database *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: database}
}

func (r *gormProjectRepository) Create(ctx context.Context, project *db.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("projects: create: %w", err)
	}
	return nil
}

func (r *gormProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Project, error) {
	var project db.Project
	err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("projects: get by id: %w", err)
	}
	return &project, nil
}

func (r *gormProjectRepository) Update(ctx context.Context, project *db.Project) error {
	result := r.db.WithContext(ctx).Save(project)
	if result.Error != nil {
		return fmt.Errorf("projects: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&db.Project{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("projects: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns projects ordered for display: explicit sort order first, then
// newest first.
func (r *gormProjectRepository) List(ctx context.Context, opts ListOptions) ([]db.Project, int64, error) {
	var projects []db.Project
	var total int64

	if err := r.db.WithContext(ctx).Model(&db.Project{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("projects: list count: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("sort_order ASC, created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("projects: list: %w", err)
	}

	return projects, total, nil
}

// ListFeatured returns all projects flagged for the landing page, unpaginated.
func (r *gormProjectRepository) ListFeatured(ctx context.Context) ([]db.Project, error) {
	var projects []db.Project
	err := r.db.WithContext(ctx).
		Where("featured = ?", true).
		Order("sort_order ASC, created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("projects: list featured: %w", err)
	}
	return projects, nil
}
