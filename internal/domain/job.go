package domain

import "time"

// Job status constants.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusDone      = "done"
	JobStatusError     = "error"
	JobStatusCancelled = "cancelled"
)

// JobConfig captures the request parameters a job was started with. It
// is recorded on the job and in the scraper run row for auditing.
type JobConfig struct {
	SeedURL       string   `json:"seed_url,omitempty"`
	MaxPages      int      `json:"max_pages"`
	Categories    []string `json:"categories,omitempty"`
	CategoryLimit int      `json:"category_limit,omitempty"`
}

// Job tracks one background scrape from submission to completion.
type Job struct {
	ID     string    `json:"job_id"`
	Client string    `json:"client"`
	Config JobConfig `json:"config"`
	Status string    `json:"status"`

	PagesDone       int    `json:"pages_done"`
	ItemsFound      int    `json:"items_found"`
	TotalCategories int    `json:"total_categories"`
	CategoriesDone  int    `json:"categories_done"`
	CurrentCategory string `json:"current_category,omitempty"`
	NewProducts     int    `json:"new_products"`
	UpdatedProducts int    `json:"updated_products"`
	LastError       string `json:"last_error,omitempty"`
	RunID           int64  `json:"run_id,omitempty"`

	CancelRequested bool       `json:"cancel_requested"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}
