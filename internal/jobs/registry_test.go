package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partswatch/partswatch/internal/domain"
)

func TestRegistrySnapshotsAreIsolated(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(domain.Job{ID: "a", Client: "partsdepot", Status: domain.JobStatusQueued})

	snap, ok := r.Get("a")
	require.True(t, ok)
	snap.Status = domain.JobStatusDone

	fresh, _ := r.Get("a")
	assert.Equal(t, domain.JobStatusQueued, fresh.Status)
}

func TestRegistryUpdate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(domain.Job{ID: "a", Status: domain.JobStatusQueued})

	updated, ok := r.Update("a", func(j *domain.Job) {
		j.Status = domain.JobStatusRunning
		j.PagesDone = 3
	})
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusRunning, updated.Status)
	assert.Equal(t, 3, updated.PagesDone)

	_, ok = r.Update("missing", func(j *domain.Job) {})
	assert.False(t, ok)
}

func TestRegistryRequestCancel(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(domain.Job{ID: "a", Status: domain.JobStatusRunning})
	r.Add(domain.Job{ID: "b", Status: domain.JobStatusDone})

	assert.True(t, r.RequestCancel("a", ""))
	job, _ := r.Get("a")
	assert.True(t, job.CancelRequested)
	assert.NotEmpty(t, job.CancelReason)

	// Terminal jobs are acknowledged but left untouched.
	assert.True(t, r.RequestCancel("b", "stop"))
	job, _ = r.Get("b")
	assert.False(t, job.CancelRequested)

	assert.False(t, r.RequestCancel("missing", ""))
}

func TestRegistryActiveForClient(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(domain.Job{ID: "a", Client: "partsdepot", Status: domain.JobStatusRunning})
	r.Add(domain.Job{ID: "b", Client: "mobilezone", Status: domain.JobStatusDone})

	assert.True(t, r.ActiveForClient("partsdepot"))
	assert.False(t, r.ActiveForClient("mobilezone"))
	assert.False(t, r.ActiveForClient("techparts"))
}

func TestRegistryListNewestFirst(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewRegistry()
	r.Add(domain.Job{ID: "old", StartedAt: now.Add(-time.Hour)})
	r.Add(domain.Job{ID: "new", StartedAt: now})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
}

func TestRegistryPrune(t *testing.T) {
	t.Parallel()

	old := time.Now().Add(-48 * time.Hour)
	r := NewRegistry()
	r.Add(domain.Job{ID: "stale", Status: domain.JobStatusDone, CompletedAt: &old})
	r.Add(domain.Job{ID: "live", Status: domain.JobStatusRunning})

	removed := r.Prune(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := r.Get("stale")
	assert.False(t, ok)
	_, ok = r.Get("live")
	assert.True(t, ok)
}
