package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/partswatch/partswatch/internal/domain"
)

// StatsRepository builds catalog summary statistics.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Summary collects catalog totals and recent scrape activity in one
// round trip.
func (r *StatsRepository) Summary(ctx context.Context) (domain.CatalogStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM brands) AS total_brands,
			(SELECT COUNT(*) FROM categories) AS total_categories,
			(SELECT COUNT(*) FROM models) AS total_models,
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM products WHERE stock_status = 'in_stock') AS in_stock_products,
			(SELECT COALESCE(ROUND(AVG(price)::numeric, 2), 0) FROM products WHERE price > 0) AS avg_price,
			(SELECT COUNT(*) FROM scraper_runs WHERE started_at >= NOW() - INTERVAL '7 days') AS runs_last_7_days,
			(SELECT COUNT(DISTINCT product_id) FROM price_history
				WHERE recorded_at >= NOW() - INTERVAL '7 days') AS price_changes_7_days,
			(SELECT status FROM scraper_runs ORDER BY started_at DESC LIMIT 1) AS last_run_status,
			(SELECT started_at FROM scraper_runs ORDER BY started_at DESC LIMIT 1) AS last_run_at,
			(SELECT items_found FROM scraper_runs ORDER BY started_at DESC LIMIT 1) AS last_run_items
	`

	var stats domain.CatalogStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return domain.CatalogStats{}, fmt.Errorf("failed to load catalog stats: %w", err)
	}
	return stats, nil
}
