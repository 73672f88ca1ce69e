package domain

import "time"

// ScraperRun status constants.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusStopped   = "stopped"
	RunStatusFailed    = "failed"
)

// ScraperRun is the durable record of one scrape, written when a job
// starts and updated with final counters when it ends.
type ScraperRun struct {
	ID           int64      `db:"id"            json:"id"`
	Client       string     `db:"client"        json:"client"`
	Status       string     `db:"status"        json:"status"`
	JobID        *string    `db:"job_id"        json:"job_id,omitempty"`
	Config       JSONBMap   `db:"config"        json:"config,omitempty"`
	PagesDone    int        `db:"pages_done"    json:"pages_done"`
	ItemsFound   int        `db:"items_found"   json:"items_found"`
	NewItems     int        `db:"new_items"     json:"new_items"`
	UpdatedItems int        `db:"updated_items" json:"updated_items"`

	// Taxonomy reach of the run: distinct brands, categories and models
	// touched, the number of products written, and the error count.
	TotalBrands     int `db:"total_brands"     json:"total_brands"`
	TotalCategories int `db:"total_categories" json:"total_categories"`
	TotalModels     int `db:"total_models"     json:"total_models"`
	TotalProducts   int `db:"total_products"   json:"total_products"`
	ErrorsCount     int `db:"errors_count"     json:"errors_count"`

	LastError   *string    `db:"last_error"   json:"last_error,omitempty"`
	StartedAt   time.Time  `db:"started_at"   json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
