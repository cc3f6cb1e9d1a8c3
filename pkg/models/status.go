// Package models defines the shared data model for StoryForge jobs and
// generated artifacts.
package models

// JobStatus represents the overall state of a generation job.
type JobStatus string

const (
	// JobStatusPending indicates the job has been created but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is executing pipeline stages.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates all enabled stages finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a stage failed and the job stopped.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further status transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StepStatus represents the state of a single tracked step within a job.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is in progress.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates the step encountered an error.
	StepStatusFailed StepStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted, StepStatusFailed:
		return true
	default:
		return false
	}
}

// StageStatus represents the state of a pipeline stage within a job's
// stage history.
type StageStatus string

const (
	// StageStatusRunning indicates the stage is currently generating.
	StageStatusRunning StageStatus = "running"
	// StageStatusCompleted indicates the stage finished and its artifacts
	// are in the store.
	StageStatusCompleted StageStatus = "completed"
	// StageStatusFailed indicates the stage's generation failed.
	StageStatusFailed StageStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s StageStatus) Valid() bool {
	switch s {
	case StageStatusRunning, StageStatusCompleted, StageStatusFailed:
		return true
	default:
		return false
	}
}

// RiskLevel classifies the blast radius of a cascade regeneration.
type RiskLevel string

const (
	// RiskLow indicates few downstream artifacts are affected.
	RiskLow RiskLevel = "low"
	// RiskMedium indicates a moderate number of downstream artifacts.
	RiskMedium RiskLevel = "medium"
	// RiskHigh indicates a large regeneration surface.
	RiskHigh RiskLevel = "high"
)

// Valid returns true if the risk level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// GapFixDisposition is the user's decision on a suggested gap fix.
// The canonical set is pending/accepted/edited/rejected; there are no
// aliases for the accepted state.
type GapFixDisposition string

const (
	// GapFixPending indicates no decision has been made yet.
	GapFixPending GapFixDisposition = "pending"
	// GapFixAccepted indicates the suggestion is applied as-is.
	GapFixAccepted GapFixDisposition = "accepted"
	// GapFixEdited indicates the user supplied their own final text.
	GapFixEdited GapFixDisposition = "edited"
	// GapFixRejected indicates the suggestion is discarded.
	GapFixRejected GapFixDisposition = "rejected"
)

// Valid returns true if the disposition is a known value.
func (d GapFixDisposition) Valid() bool {
	switch d {
	case GapFixPending, GapFixAccepted, GapFixEdited, GapFixRejected:
		return true
	default:
		return false
	}
}

// Applied returns true if the gap fix should be fed into generation
// requests (accepted as suggested, or edited with user text).
func (d GapFixDisposition) Applied() bool {
	return d == GapFixAccepted || d == GapFixEdited
}
