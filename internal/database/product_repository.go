package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/partswatch/partswatch/internal/catalog"
	"github.com/partswatch/partswatch/internal/domain"
)

// ErrProductNotFound is returned when an update targets a missing product.
var ErrProductNotFound = errors.New("product not found")

const pqUniqueViolation = "23505"

// productSelectColumns lists columns for SELECT queries on products.
const productSelectColumns = `id, model_id, sku, title, product_url, price, old_price, currency,
	stock_status, description, image_url, first_seen_at, last_seen_at, created_at, updated_at`

// ProductRepository handles database operations for products and their
// history tables.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindBySKU returns the product carrying the SKU, or nil when absent.
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT ` + productSelectColumns + ` FROM products WHERE sku = $1`

	err := r.db.GetContext(ctx, &product, query, sku)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product by sku: %w", err)
	}
	return &product, nil
}

// Insert stores a new product and returns its id. A concurrent insert of
// the same SKU surfaces as catalog.ErrDuplicateSKU.
func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) (int64, error) {
	query := `
		INSERT INTO products (
			model_id, sku, title, product_url, price, old_price, currency,
			stock_status, description, image_url, first_seen_at, last_seen_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, query,
		p.ModelID, p.SKU, p.Title, p.ProductURL, p.Price, p.OldPrice, p.Currency,
		p.StockStatus, p.Description, p.ImageURL, p.FirstSeenAt, p.LastSeenAt,
		p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return 0, fmt.Errorf("sku %s: %w", p.SKU, catalog.ErrDuplicateSKU)
		}
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

// Update rewrites a product's tracked fields.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET model_id = $1, title = $2, product_url = $3, price = $4, old_price = $5,
		    currency = $6, stock_status = $7, description = $8, image_url = $9,
		    last_seen_at = $10, updated_at = $11
		WHERE id = $12
	`

	result, err := r.db.ExecContext(
		ctx, query,
		p.ModelID, p.Title, p.ProductURL, p.Price, p.OldPrice,
		p.Currency, p.StockStatus, p.Description, p.ImageURL,
		p.LastSeenAt, p.UpdatedAt, p.ID,
	)
	if execErr := execRequireRows(result, err, ErrProductNotFound); execErr != nil {
		return fmt.Errorf("failed to update product: %w", execErr)
	}
	return nil
}

// AddPriceHistory appends a price observation for a product.
func (r *ProductRepository) AddPriceHistory(ctx context.Context, h domain.PriceHistory) error {
	query := `
		INSERT INTO price_history (product_id, price, old_price, currency, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, h.ProductID, h.Price, h.OldPrice, h.Currency, h.RecordedAt); err != nil {
		return fmt.Errorf("failed to add price history: %w", err)
	}
	return nil
}

// AddChange appends a product change row.
func (r *ProductRepository) AddChange(ctx context.Context, c domain.ProductChange) error {
	query := `
		INSERT INTO product_changes (product_id, field, old_value, new_value, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, c.ProductID, c.Field, c.OldValue, c.NewValue, c.ChangedAt); err != nil {
		return fmt.Errorf("failed to add product change: %w", err)
	}
	return nil
}

// AddBaseline stores a product's first-seen snapshot. A baseline is
// written once; later attempts are no-ops.
func (r *ProductRepository) AddBaseline(ctx context.Context, b domain.ProductBaseline) error {
	query := `
		INSERT INTO product_baselines (product_id, price, stock_status, description, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, b.ProductID, b.Price, b.StockStatus, b.Description, b.CapturedAt); err != nil {
		return fmt.Errorf("failed to add product baseline: %w", err)
	}
	return nil
}

// RecentChanges returns the latest product changes joined with their
// products, newest first. Rows whose values differ only in case or
// whitespace are filtered out.
func (r *ProductRepository) RecentChanges(ctx context.Context, limit int) ([]domain.RecentChange, error) {
	query := `
		SELECT c.id, c.product_id, c.field, c.old_value, c.new_value, c.changed_at,
		       p.sku, p.title, p.product_url
		FROM product_changes c
		JOIN products p ON p.id = c.product_id
		WHERE TRIM(LOWER(c.old_value)) != TRIM(LOWER(c.new_value))
		ORDER BY c.changed_at DESC
		LIMIT $1
	`

	var changes []domain.RecentChange
	if err := r.db.SelectContext(ctx, &changes, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent changes: %w", err)
	}

	for i := range changes {
		changes[i].ChangeType = catalog.ClassifyChangeField(changes[i].Field)
	}
	if changes == nil {
		changes = []domain.RecentChange{}
	}
	return changes, nil
}
