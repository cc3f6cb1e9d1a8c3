package job

import (
	"time"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// StageMachine tracks a job's position in the stage sequence with an
// explicit current pointer, an append-only history, and a completed set.
// At most one history entry per stage is live: re-entry appends a new entry
// only when the previous one failed (was superseded); completed stages
// short-circuit without appending.
//
// StageMachine is not safe for concurrent use; the owning Job serializes
// access.
type StageMachine struct {
	current   *models.Stage
	history   []models.StageState
	completed map[models.Stage]bool
}

// NewStageMachine creates an empty stage machine.
func NewStageMachine() *StageMachine {
	return &StageMachine{
		completed: make(map[models.Stage]bool),
	}
}

// Current returns the stage the machine is positioned at, or nil before the
// first advance.
func (m *StageMachine) Current() *models.Stage {
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// History returns a copy of the append-only stage history.
func (m *StageMachine) History() []models.StageState {
	return append([]models.StageState(nil), m.history...)
}

// Completed reports whether the stage has a completed history entry.
func (m *StageMachine) Completed(s models.Stage) bool {
	return m.completed[s]
}

// Advance moves the machine to next. If next already completed, only the
// current pointer moves and alreadyCompleted is true (idempotent re-entry).
// Otherwise the current stage's latest history entry is marked completed and
// user-approved, and a new running entry is appended for next.
func (m *StageMachine) Advance(next models.Stage) (alreadyCompleted bool, err error) {
	if !next.Valid() {
		return false, models.InvalidRequestf("unknown stage %q", next)
	}

	if m.completed[next] {
		m.current = &next
		return true, nil
	}

	if m.current != nil {
		m.approveLatestLocked(*m.current)
	}

	m.history = append(m.history, models.StageState{
		Stage:     next,
		Status:    models.StageStatusRunning,
		StartedAt: time.Now(),
	})
	m.current = &next
	return false, nil
}

// CompleteCurrent marks the current stage's latest history entry completed.
func (m *StageMachine) CompleteCurrent() error {
	if m.current == nil {
		return models.InvalidRequestf("no current stage to complete")
	}

	i := m.latestIndex(*m.current)
	if i < 0 {
		return models.CascadeConflictf("current stage %s has no history entry", *m.current)
	}

	now := time.Now()
	m.history[i].Status = models.StageStatusCompleted
	m.history[i].CompletedAt = &now
	m.completed[*m.current] = true
	return nil
}

// FailCurrent marks the current stage's latest running entry failed. A job
// failure mid-stage must not leave the entry running forever.
func (m *StageMachine) FailCurrent() {
	if m.current == nil {
		return
	}

	i := m.latestIndex(*m.current)
	if i < 0 || m.history[i].Status != models.StageStatusRunning {
		return
	}

	now := time.Now()
	m.history[i].Status = models.StageStatusFailed
	m.history[i].CompletedAt = &now
}

// approveLatestLocked marks the latest entry for the stage completed and
// user-approved; advancing past a stage implies approval of its artifacts.
func (m *StageMachine) approveLatestLocked(s models.Stage) {
	i := m.latestIndex(s)
	if i < 0 {
		return
	}

	m.history[i].UserApproved = true
	if m.history[i].Status != models.StageStatusCompleted {
		now := time.Now()
		m.history[i].Status = models.StageStatusCompleted
		m.history[i].CompletedAt = &now
		m.completed[s] = true
	}
}

// latestIndex returns the index of the most recent history entry for the
// stage, or -1.
func (m *StageMachine) latestIndex(s models.Stage) int {
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].Stage == s {
			return i
		}
	}
	return -1
}
