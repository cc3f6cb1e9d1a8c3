package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

func TestRegistry_AddGet(t *testing.T) {
	r := New(NewMemoryStore())
	defer r.Close()

	j := job.New("job-1", "", models.AllArtifacts())
	if err := r.Add(j); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(j); !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("duplicate Add error = %v, want ErrInvalidRequest", err)
	}

	got, err := r.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != "job-1" {
		t.Errorf("Get returned job %s", got.ID())
	}

	if _, err := r.Get("job-2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing job error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	r := New(NewMemoryStore())
	defer r.Close()

	for _, id := range []string{"job-a", "job-b", "job-c"} {
		if err := r.Add(job.New(id, "", models.AllArtifacts())); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
		time.Sleep(time.Millisecond)
	}

	snaps := r.List()
	if len(snaps) != 3 {
		t.Fatalf("List length = %d, want 3", len(snaps))
	}
	if snaps[0].JobID != "job-c" || snaps[2].JobID != "job-a" {
		t.Errorf("List order = %s..%s, want job-c..job-a", snaps[0].JobID, snaps[2].JobID)
	}
}

func TestRegistry_CheckpointAndSnapshot(t *testing.T) {
	store := NewMemoryStore()
	r := New(store)
	defer r.Close()

	j := job.New("job-1", "", models.AllArtifacts())
	if err := r.Add(j); err != nil {
		t.Fatalf("Add: %v", err)
	}
	j.SetStatus(models.JobStatusCompleted)

	if err := r.Checkpoint("job-1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	persisted, err := store.GetSnapshot("job-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if persisted.Status != models.JobStatusCompleted {
		t.Errorf("persisted status = %s", persisted.Status)
	}

	if err := r.Checkpoint("job-9"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Checkpoint unknown error = %v", err)
	}

	// Snapshot prefers the live job but falls back to the store.
	snap, err := r.Snapshot("job-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.JobID != "job-1" {
		t.Errorf("Snapshot JobID = %s", snap.JobID)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	cur := models.StageEpics
	snap := models.JobSnapshot{
		JobID:        "job-1",
		Status:       models.JobStatusRunning,
		Instructions: "short stories please",
		Artifacts:    models.AllArtifacts(),
		Steps: []models.Step{
			{Name: "parse_document", Status: models.StepStatusCompleted, DurationMS: 42},
		},
		CurrentStage: &cur,
		StageHistory: []models.StageState{
			{Stage: models.StageEpics, Status: models.StageStatusRunning, StartedAt: time.Now().UTC()},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := store.GetSnapshot("job-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.Status != models.JobStatusRunning || got.Instructions != "short stories please" {
		t.Errorf("round trip = %+v", got)
	}
	if got.CurrentStage == nil || *got.CurrentStage != models.StageEpics {
		t.Errorf("CurrentStage = %v", got.CurrentStage)
	}
	if len(got.Steps) != 1 || got.Steps[0].DurationMS != 42 {
		t.Errorf("Steps = %+v", got.Steps)
	}

	// Upsert replaces, not duplicates.
	snap.Status = models.JobStatusCompleted
	if err := store.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot update: %v", err)
	}
	list, err := store.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 1 || list[0].Status != models.JobStatusCompleted {
		t.Errorf("list after upsert = %+v", list)
	}

	if _, err := store.GetSnapshot("job-9"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing snapshot error = %v", err)
	}
}
