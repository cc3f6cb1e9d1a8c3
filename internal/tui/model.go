// Package tui renders live job progress in the terminal while a
// pipeline run is in flight.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// SnapshotFunc fetches the current state of the watched job.
type SnapshotFunc func() (models.JobSnapshot, error)

type snapshotMsg struct {
	snap models.JobSnapshot
}

type snapshotErrMsg struct {
	err error
}

type pollMsg struct{}

// Model is the bubbletea model for a single job's progress view.
type Model struct {
	fetch    SnapshotFunc
	interval time.Duration

	snap     models.JobSnapshot
	haveSnap bool
	fetchErr error

	spin     spinner.Model
	width    int
	quitting bool
}

// NewModel creates a progress model that polls fetch at the given
// interval. An interval of zero falls back to half a second.
func NewModel(fetch SnapshotFunc, interval time.Duration) Model {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		fetch:    fetch,
		interval: interval,
		spin:     sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.poll())
}

func (m Model) poll() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		snap, err := fetch()
		if err != nil {
			return snapshotErrMsg{err: err}
		}
		return snapshotMsg{snap: snap}
	}
}

func (m Model) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

// Done reports whether the watched job reached a terminal status.
func (m Model) Done() bool {
	if !m.haveSnap {
		return false
	}
	return m.snap.Status == models.JobStatusCompleted || m.snap.Status == models.JobStatusFailed
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case snapshotMsg:
		m.snap = msg.snap
		m.haveSnap = true
		m.fetchErr = nil
		if m.Done() {
			return m, nil
		}
		return m, m.schedule()

	case snapshotErrMsg:
		m.fetchErr = msg.err
		return m, m.schedule()

	case pollMsg:
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")

	if !m.haveSnap {
		b.WriteString(hintStyle.Render("  waiting for job state..."))
		b.WriteString("\n")
	} else {
		m.viewSteps(&b)
		b.WriteString("\n")
		m.viewCounts(&b)
	}

	if m.fetchErr != nil {
		b.WriteString("\n")
		b.WriteString(failStyle.Render("  poll error: " + m.fetchErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewHeader() string {
	title := "storyforge"
	if m.haveSnap && m.snap.Results.ProjectName != "" {
		title = m.snap.Results.ProjectName
	}
	line := titleStyle.Render(title)
	if m.haveSnap {
		line += hintStyle.Render("  job " + m.snap.JobID)
	}
	return line
}

func (m Model) viewSteps(b *strings.Builder) {
	for _, step := range m.snap.Steps {
		var marker, name string
		switch step.Status {
		case models.StepStatusCompleted:
			marker = okStyle.Render("✓")
			name = step.Name
			if step.DurationMS > 0 {
				name += hintStyle.Render(fmt.Sprintf("  %.1fs", float64(step.DurationMS)/1000))
			}
		case models.StepStatusFailed:
			marker = failStyle.Render("✗")
			name = failStyle.Render(step.Name)
		case models.StepStatusRunning:
			marker = m.spin.View()
			name = runningStyle.Render(step.Name)
		default:
			marker = hintStyle.Render("·")
			name = hintStyle.Render(step.Name)
		}
		fmt.Fprintf(b, "  %s %s\n", marker, name)
	}
}

func (m Model) viewCounts(b *strings.Builder) {
	r := m.snap.Results
	parts := []string{
		fmt.Sprintf("epics %d", len(r.Epics)),
		fmt.Sprintf("stories %d", len(r.UserStories)),
		fmt.Sprintf("tests %d", len(r.FunctionalTests)),
		fmt.Sprintf("scenarios %d", len(r.GherkinScenarios)),
		fmt.Sprintf("entities %d", len(r.Entities)),
	}
	b.WriteString(hintStyle.Render("  " + strings.Join(parts, "  ")))
	b.WriteString("\n")
}

func (m Model) viewFooter() string {
	if !m.haveSnap {
		return hintStyle.Render("  q to quit")
	}
	switch m.snap.Status {
	case models.JobStatusCompleted:
		return okStyle.Render("  ✓ job completed") + hintStyle.Render("  q to exit")
	case models.JobStatusFailed:
		msg := "  ✗ job failed"
		if m.snap.Error != "" {
			msg += ": " + m.snap.Error
		}
		return failStyle.Render(msg) + hintStyle.Render("  q to exit")
	default:
		return hintStyle.Render("  q to quit (the job keeps running)")
	}
}

// Run drives the progress view until the user quits or the job
// finishes and the user exits.
func Run(fetch SnapshotFunc, interval time.Duration) error {
	p := tea.NewProgram(NewModel(fetch, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
