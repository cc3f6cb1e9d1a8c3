// Package registry tracks live jobs in memory and persists their snapshots
// through a pluggable store backend.
package registry

import (
	"io"
	"sort"
	"sync"

	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// SnapshotStore persists job snapshots. The in-memory backend is the
// default; the SQLite backend survives process restarts.
type SnapshotStore interface {
	io.Closer

	// SaveSnapshot inserts or replaces the snapshot for its job.
	SaveSnapshot(snap models.JobSnapshot) error
	// GetSnapshot returns the snapshot for the job, or ErrNotFound.
	GetSnapshot(jobID string) (models.JobSnapshot, error)
	// ListSnapshots returns all snapshots, newest first.
	ListSnapshots() ([]models.JobSnapshot, error)
}

// Registry holds the live job set. Live jobs are authoritative while the
// process runs; the snapshot store is a write-through record updated on
// Checkpoint.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*job.Job
	store SnapshotStore
}

// New creates a registry backed by the given snapshot store.
func New(store SnapshotStore) *Registry {
	return &Registry{
		jobs:  make(map[string]*job.Job),
		store: store,
	}
}

// Add registers a live job. Job identifiers are unique.
func (r *Registry) Add(j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[j.ID()]; exists {
		return models.InvalidRequestf("job %s already registered", j.ID())
	}
	r.jobs[j.ID()] = j
	return nil
}

// Get returns the live job with the given identifier, or ErrNotFound.
func (r *Registry) Get(id string) (*job.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, models.NotFoundf("job %s", id)
	}
	return j, nil
}

// List returns snapshots of every live job, newest first.
func (r *Registry) List() []models.JobSnapshot {
	r.mu.RLock()
	jobs := make([]*job.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	snaps := make([]models.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		snaps = append(snaps, j.Snapshot())
	}
	sort.Slice(snaps, func(i, k int) bool {
		return snaps[i].CreatedAt.After(snaps[k].CreatedAt)
	})
	return snaps
}

// Checkpoint writes the job's current snapshot through to the store.
func (r *Registry) Checkpoint(id string) error {
	j, err := r.Get(id)
	if err != nil {
		return err
	}
	return r.store.SaveSnapshot(j.Snapshot())
}

// Snapshot returns the persisted snapshot for a job. Live jobs take
// precedence; the store is consulted for jobs from earlier runs.
func (r *Registry) Snapshot(id string) (models.JobSnapshot, error) {
	if j, err := r.Get(id); err == nil {
		return j.Snapshot(), nil
	}
	return r.store.GetSnapshot(id)
}

// Close closes the snapshot store.
func (r *Registry) Close() error {
	return r.store.Close()
}
