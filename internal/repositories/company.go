package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/db"
)

// gormCompanyRepository is the GORM implementation of CompanyRepository.
type gormCompanyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository returns a CompanyRepository backed by the provided *gorm.DB.
func NewCompanyRepository(database *gorm.DB) CompanyRepository {
	return &gormCompanyRepository{db: database}
}

func (r *gormCompanyRepository) Create(ctx context.Context, company *db.Company) error {
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		return fmt.Errorf("companies: create: %w", err)
	}
	return nil
}

// GetByID retrieves a company by its UUID. Returns ErrNotFound if no record exists.
func (r *gormCompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Company, error) {
	var company db.Company
	err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("companies: get by id: %w", err)
	}
	return &company, nil
}

func (r *gormCompanyRepository) Update(ctx context.Context, company *db.Company) error {
	result := r.db.WithContext(ctx).Save(company)
	if result.Error != nil {
		return fmt.Errorf("companies: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormCompanyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&db.Company{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("companies: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns companies ordered for display: explicit sort order first, then
// most recent start date.
func (r *gormCompanyRepository) List(ctx context.Context, opts ListOptions) ([]db.Company, int64, error) {
	var companies []db.Company
	var total int64

	if err := r.db.WithContext(ctx).Model(&db.Company{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("companies: list count: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("sort_order ASC, start_date DESC").
		Find(&companies).Error; err != nil {
		return nil, 0, fmt.Errorf("companies: list: %w", err)
	}

	return companies, total, nil
}
