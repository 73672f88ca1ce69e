package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/partswatch/partswatch/internal/domain"
)

// TaxonomyRepository handles database operations for brands, categories
// and models. All saves are upserts keyed by slug so repeated runs reuse
// the existing rows.
type TaxonomyRepository struct {
	db *sqlx.DB
}

// NewTaxonomyRepository creates a new taxonomy repository.
func NewTaxonomyRepository(db *sqlx.DB) *TaxonomyRepository {
	return &TaxonomyRepository{db: db}
}

// SaveBrand upserts a brand by slug and returns the stored row.
func (r *TaxonomyRepository) SaveBrand(ctx context.Context, name, slug, url string) (domain.Brand, error) {
	query := `
		INSERT INTO brands (name, slug, url)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			updated_at = NOW()
		RETURNING id, name, slug, url, created_at, updated_at
	`

	var brand domain.Brand
	if err := r.db.GetContext(ctx, &brand, query, name, slug, url); err != nil {
		return domain.Brand{}, fmt.Errorf("failed to save brand: %w", err)
	}
	return brand, nil
}

// SaveCategory upserts a category by (brand_id, slug) and returns the
// stored row.
func (r *TaxonomyRepository) SaveCategory(ctx context.Context, brandID int64, name, slug, url string) (domain.Category, error) {
	query := `
		INSERT INTO categories (brand_id, name, slug, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (brand_id, slug) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			updated_at = NOW()
		RETURNING id, brand_id, name, slug, url, created_at, updated_at
	`

	var category domain.Category
	if err := r.db.GetContext(ctx, &category, query, brandID, name, slug, url); err != nil {
		return domain.Category{}, fmt.Errorf("failed to save category: %w", err)
	}
	return category, nil
}

// SaveModel upserts a model by (category_id, slug) and returns the
// stored row.
func (r *TaxonomyRepository) SaveModel(ctx context.Context, categoryID int64, name, slug, url string) (domain.Model, error) {
	query := `
		INSERT INTO models (category_id, name, slug, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category_id, slug) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			updated_at = NOW()
		RETURNING id, category_id, name, slug, url, created_at, updated_at
	`

	var model domain.Model
	if err := r.db.GetContext(ctx, &model, query, categoryID, name, slug, url); err != nil {
		return domain.Model{}, fmt.Errorf("failed to save model: %w", err)
	}
	return model, nil
}
