package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements create the catalog schema. Every statement is
// idempotent so Migrate can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		brand_id BIGINT NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (brand_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS models (
		id BIGSERIAL PRIMARY KEY,
		category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (category_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		model_id BIGINT NOT NULL REFERENCES models(id) ON DELETE CASCADE,
		sku TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		product_url TEXT NOT NULL UNIQUE,
		price NUMERIC(12,2),
		old_price NUMERIC(12,2),
		currency TEXT NOT NULL DEFAULT '',
		stock_status TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_model_id ON products(model_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_stock_status ON products(stock_status)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		price NUMERIC(12,2) NOT NULL,
		old_price NUMERIC(12,2),
		currency TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history(product_id, recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS product_changes (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		field TEXT NOT NULL,
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_changes_changed_at ON product_changes(changed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS product_baselines (
		product_id BIGINT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
		price NUMERIC(12,2),
		stock_status TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS scraper_runs (
		id BIGSERIAL PRIMARY KEY,
		client TEXT NOT NULL,
		status TEXT NOT NULL,
		job_id TEXT,
		config JSONB,
		pages_done INT NOT NULL DEFAULT 0,
		items_found INT NOT NULL DEFAULT 0,
		new_items INT NOT NULL DEFAULT 0,
		updated_items INT NOT NULL DEFAULT 0,
		total_brands INT NOT NULL DEFAULT 0,
		total_categories INT NOT NULL DEFAULT 0,
		total_models INT NOT NULL DEFAULT 0,
		total_products INT NOT NULL DEFAULT 0,
		errors_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scraper_runs_started_at ON scraper_runs(started_at DESC)`,

	// Fetch snapshots kept under the legacy table names so exported
	// tooling keeps working against them.
	`CREATE TABLE IF NOT EXISTS fetch_history (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		urls JSONB NOT NULL,
		items_count INT NOT NULL DEFAULT 0,
		rules JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		history_id TEXT NOT NULL REFERENCES fetch_history(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		site TEXT,
		title TEXT,
		price_value NUMERIC(12,2),
		currency TEXT,
		price_text TEXT,
		image_url TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fetch_history_timestamp ON fetch_history(timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_items_history_id ON items(history_id)`,
}

// Migrate applies the catalog schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
