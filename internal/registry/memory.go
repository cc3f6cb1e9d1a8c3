package registry

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// MemoryStore keeps snapshots in process memory. It is the default backend
// and loses state on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]models.JobSnapshot
}

var _ SnapshotStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]models.JobSnapshot)}
}

// SaveSnapshot inserts or replaces the snapshot for its job.
func (m *MemoryStore) SaveSnapshot(snap models.JobSnapshot) error {
	if snap.JobID == "" {
		return models.InvalidRequestf("snapshot missing job id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.JobID] = snap
	return nil
}

// GetSnapshot returns the snapshot for the job, or ErrNotFound.
func (m *MemoryStore) GetSnapshot(jobID string) (models.JobSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snaps[jobID]
	if !ok {
		return models.JobSnapshot{}, models.NotFoundf("job %s", jobID)
	}
	return snap, nil
}

// ListSnapshots returns all snapshots, newest first.
func (m *MemoryStore) ListSnapshots() ([]models.JobSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.JobSnapshot, 0, len(m.snaps))
	for _, snap := range m.snaps {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
