package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/partswatch/partswatch/internal/domain"
)

// ErrRunNotFound is returned when an update targets a missing run.
var ErrRunNotFound = errors.New("scraper run not found")

// runSelectColumns lists columns for SELECT queries on scraper_runs.
const runSelectColumns = `id, client, status, job_id, config, pages_done, items_found,
	new_items, updated_items, total_brands, total_categories, total_models,
	total_products, errors_count, last_error, started_at, completed_at`

// RunRepository handles database operations for scraper runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run row when a job starts.
func (r *RunRepository) Create(ctx context.Context, run *domain.ScraperRun) error {
	query := `
		INSERT INTO scraper_runs (client, status, job_id, config, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx, query,
		run.Client, run.Status, run.JobID, run.Config, run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to create scraper run: %w", err)
	}
	return nil
}

// Update rewrites a run's status and counters.
func (r *RunRepository) Update(ctx context.Context, run *domain.ScraperRun) error {
	query := `
		UPDATE scraper_runs
		SET status = $1, pages_done = $2, items_found = $3, new_items = $4,
		    updated_items = $5, total_brands = $6, total_categories = $7,
		    total_models = $8, total_products = $9, errors_count = $10,
		    last_error = $11, completed_at = $12
		WHERE id = $13
	`

	result, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.PagesDone, run.ItemsFound, run.NewItems,
		run.UpdatedItems, run.TotalBrands, run.TotalCategories,
		run.TotalModels, run.TotalProducts, run.ErrorsCount,
		run.LastError, run.CompletedAt, run.ID,
	)
	if execErr := execRequireRows(result, err, ErrRunNotFound); execErr != nil {
		return fmt.Errorf("failed to update scraper run: %w", execErr)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]domain.ScraperRun, error) {
	query := `SELECT ` + runSelectColumns + ` FROM scraper_runs ORDER BY started_at DESC LIMIT $1`

	var runs []domain.ScraperRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	if runs == nil {
		runs = []domain.ScraperRun{}
	}
	return runs, nil
}
