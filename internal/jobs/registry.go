// Package jobs runs and tracks background scrape jobs.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/partswatch/partswatch/internal/domain"
)

// Registry tracks jobs by id. All access goes through the registry's
// mutex; callers get snapshots, never live pointers.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*domain.Job)}
}

// Add registers a job.
func (r *Registry) Add(job domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := job
	r.jobs[job.ID] = &stored
}

// Get returns a snapshot of the job, if known.
func (r *Registry) Get(id string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// Update applies fn to the job under the registry lock and returns the
// resulting snapshot.
func (r *Registry) Update(id string, fn func(*domain.Job)) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	fn(job)
	return *job, true
}

// List returns snapshots of all jobs, most recent first.
func (r *Registry) List() []domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	sortJobsByStart(out)
	return out
}

// ActiveForClient reports whether the client has a job that is still
// queued or running.
func (r *Registry) ActiveForClient(client string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if job.Client == client && !job.Terminal() {
			return true
		}
	}
	return false
}

// RequestCancel marks a job for cooperative cancellation. Terminal jobs
// are left untouched. Returns false when the job is unknown.
func (r *Registry) RequestCancel(id, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	if job.Terminal() || job.CancelRequested {
		return true
	}
	if reason == "" {
		reason = "scrape cancelled by user"
	}
	job.CancelRequested = true
	job.CancelReason = reason
	return true
}

func sortJobsByStart(jobs []domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
}

// Prune drops terminal jobs that completed before the retention window.
func (r *Registry) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.jobs {
		if job.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
