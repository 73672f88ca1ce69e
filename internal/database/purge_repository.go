package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PurgeOptions controls what Purge removes. DeleteAll (or a nil cutoff)
// wipes history tables wholesale; otherwise rows older than the cutoff
// go. Products are only touched when IncludeProducts is set.
type PurgeOptions struct {
	OlderThanDays   *int `json:"older_than_days,omitempty"`
	IncludeProducts bool `json:"include_products"`
	DeleteAll       bool `json:"delete_all"`
}

// PurgeResult reports rows deleted per table.
type PurgeResult struct {
	PriceHistoryDeleted int64 `json:"price_history_deleted"`
	ChangesDeleted      int64 `json:"change_logs_deleted"`
	ProductsDeleted     int64 `json:"products_deleted"`
}

// PurgeRepository removes historical catalog data.
type PurgeRepository struct {
	db *sqlx.DB
}

// NewPurgeRepository creates a new purge repository.
func NewPurgeRepository(db *sqlx.DB) *PurgeRepository {
	return &PurgeRepository{db: db}
}

// Purge deletes history rows per the options and returns per-table
// counts. Everything runs in one transaction so a failure leaves the
// catalog untouched.
func (r *PurgeRepository) Purge(ctx context.Context, opts PurgeOptions) (PurgeResult, error) {
	var result PurgeResult

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cutoff *time.Time
	if opts.OlderThanDays != nil && !opts.DeleteAll {
		t := time.Now().UTC().AddDate(0, 0, -*opts.OlderThanDays)
		cutoff = &t
	}

	if cutoff == nil {
		if result.ChangesDeleted, err = execCount(ctx, tx, `DELETE FROM product_changes`); err != nil {
			return PurgeResult{}, err
		}
		if result.PriceHistoryDeleted, err = execCount(ctx, tx, `DELETE FROM price_history`); err != nil {
			return PurgeResult{}, err
		}
		if opts.IncludeProducts {
			if result.ProductsDeleted, err = execCount(ctx, tx, `DELETE FROM products`); err != nil {
				return PurgeResult{}, err
			}
		}
	} else {
		if result.ChangesDeleted, err = execCount(ctx, tx,
			`DELETE FROM product_changes WHERE changed_at < $1`, cutoff); err != nil {
			return PurgeResult{}, err
		}
		if result.PriceHistoryDeleted, err = execCount(ctx, tx,
			`DELETE FROM price_history WHERE recorded_at < $1`, cutoff); err != nil {
			return PurgeResult{}, err
		}
		if opts.IncludeProducts {
			if result.ProductsDeleted, err = execCount(ctx, tx,
				`DELETE FROM products WHERE updated_at < $1`, cutoff); err != nil {
				return PurgeResult{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return PurgeResult{}, fmt.Errorf("failed to commit purge: %w", err)
	}
	return result, nil
}

func execCount(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rows: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	return n, nil
}
