package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

func snapshotFixture(status models.JobStatus) models.JobSnapshot {
	return models.JobSnapshot{
		JobID:  "job-1",
		Status: status,
		Steps: []models.Step{
			{Name: "parse_document", Status: models.StepStatusCompleted, DurationMS: 1200},
			{Name: "generate_epics_and_stories", Status: models.StepStatusRunning},
			{Name: "generate_data_model", Status: models.StepStatusPending},
		},
		Results: models.Results{
			ProjectName: "TaskHub",
			Epics:       []models.Epic{{ID: "epic-1", Name: "Accounts"}},
			UserStories: []models.UserStory{{ID: "story-1", EpicID: "epic-1"}},
		},
	}
}

func TestModelRendersSnapshot(t *testing.T) {
	m := NewModel(func() (models.JobSnapshot, error) {
		return snapshotFixture(models.JobStatusRunning), nil
	}, time.Second)

	updated, _ := m.Update(snapshotMsg{snap: snapshotFixture(models.JobStatusRunning)})
	m = updated.(Model)

	view := m.View()
	for _, want := range []string{"TaskHub", "job-1", "parse_document", "epics 1", "stories 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.Done() {
		t.Error("running job reported done")
	}
}

func TestModelDoneOnTerminalStatus(t *testing.T) {
	m := NewModel(func() (models.JobSnapshot, error) {
		return snapshotFixture(models.JobStatusCompleted), nil
	}, time.Second)

	updated, cmd := m.Update(snapshotMsg{snap: snapshotFixture(models.JobStatusCompleted)})
	m = updated.(Model)

	if !m.Done() {
		t.Error("completed job not reported done")
	}
	if cmd != nil {
		t.Error("terminal snapshot should stop polling")
	}
	if !strings.Contains(m.View(), "job completed") {
		t.Errorf("view missing completion banner:\n%s", m.View())
	}
}

func TestModelQuitKey(t *testing.T) {
	m := NewModel(func() (models.JobSnapshot, error) {
		return models.JobSnapshot{}, nil
	}, time.Second)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)

	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if m.View() != "" {
		t.Errorf("quitting view = %q, want empty", m.View())
	}
}
