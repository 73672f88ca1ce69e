package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/partswatch/partswatch/internal/domain"
)

// ErrHistoryNotFound is returned when a snapshot id is unknown.
var ErrHistoryNotFound = errors.New("fetch history not found")

// historySelectColumns lists columns for SELECT queries on fetch_history.
const historySelectColumns = `id, timestamp, urls, items_count, rules, created_at`

// HistoryRepository persists fetch snapshots into the legacy
// fetch_history and items tables.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save writes a snapshot together with its items in one transaction.
func (r *HistoryRepository) Save(ctx context.Context, h *domain.FetchHistory) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	h.ItemsCount = len(h.Items)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO fetch_history (id, timestamp, urls, items_count, rules)
		VALUES ($1, $2, $3, $4, $5)
	`, h.ID, h.Timestamp, h.URLs, h.ItemsCount, h.Rules)
	if err != nil {
		return fmt.Errorf("failed to insert fetch history: %w", err)
	}

	for _, item := range h.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (history_id, url, site, title, price_value, currency, price_text, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, h.ID, item.URL, item.Site, item.Title, item.PriceValue, item.Currency, item.PriceText, item.ImageURL)
		if err != nil {
			return fmt.Errorf("failed to insert fetched item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fetch history: %w", err)
	}
	return nil
}

// Recent lists snapshot headers newest first, without items.
func (r *HistoryRepository) Recent(ctx context.Context, limit, offset int) ([]domain.FetchHistory, error) {
	query := `SELECT ` + historySelectColumns + ` FROM fetch_history ORDER BY timestamp DESC LIMIT $1 OFFSET $2`

	var histories []domain.FetchHistory
	if err := r.db.SelectContext(ctx, &histories, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list fetch history: %w", err)
	}
	if histories == nil {
		histories = []domain.FetchHistory{}
	}
	return histories, nil
}

// Get returns one snapshot with its items.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*domain.FetchHistory, error) {
	var history domain.FetchHistory
	query := `SELECT ` + historySelectColumns + ` FROM fetch_history WHERE id = $1`

	err := r.db.GetContext(ctx, &history, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrHistoryNotFound)
		}
		return nil, fmt.Errorf("failed to get fetch history: %w", err)
	}

	itemsQuery := `
		SELECT id, history_id, url, site, title, price_value, currency, price_text, image_url
		FROM items WHERE history_id = $1 ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &history.Items, itemsQuery, id); err != nil {
		return nil, fmt.Errorf("failed to load fetched items: %w", err)
	}
	return &history, nil
}

// Cleanup drops snapshots older than the given number of days and
// returns how many went. Items follow through the cascade.
func (r *HistoryRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	result, err := r.db.ExecContext(ctx, `DELETE FROM fetch_history WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up fetch history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned up history: %w", err)
	}
	return n, nil
}
